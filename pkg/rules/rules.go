// Package rules compiles match-rule descriptors into a priority-ordered,
// immutable rule set and applies them with first-match-wins semantics.
package rules

import (
	"errors"
	"fmt"
	"time"

	"github.com/dlclark/regexp2"

	"github.com/huntlab/filehound/pkg/types"
)

// ErrMalformedRule is returned at load time when a descriptor carries an
// unknown attribute or a pattern that does not compile.
var ErrMalformedRule = errors.New("malformed match rule")

// matchTimeout bounds regex evaluation to prevent catastrophic
// backtracking on adversarial content.
const matchTimeout = 5 * time.Second

// Priority weights. Fixed so that, at equal relevance and accuracy,
// content rules sort above full-path rules above file-name rules. Tiers
// are spaced an order of magnitude apart and relevance weighs double
// accuracy at every tier, so within one search location a high-relevance
// rule always outranks a low-relevance one regardless of accuracy.
var (
	locationWeight = map[types.SearchLocation]int{
		types.LocationFileName:    1,
		types.LocationFullPath:    1000,
		types.LocationFileContent: 10000,
	}
	relevanceWeight = map[types.Relevance]int{
		types.RelevanceLow:    200,
		types.RelevanceMedium: 2000,
		types.RelevanceHigh:   20000,
	}
	accuracyWeight = map[types.Accuracy]int{
		types.AccuracyLow:    100,
		types.AccuracyMedium: 1000,
		types.AccuracyHigh:   10000,
	}
)

// Descriptor is the configuration form of a match rule.
type Descriptor struct {
	SearchLocation string `yaml:"search_location"`
	SearchPattern  string `yaml:"search_pattern"`
	Category       string `yaml:"category"`
	Relevance      string `yaml:"relevance"`
	Accuracy       string `yaml:"accuracy"`
}

// Rule is a compiled match rule. Rules are immutable after Compile and
// safe for concurrent use.
type Rule struct {
	Location  types.SearchLocation
	Pattern   string
	Category  string
	Relevance types.Relevance
	Accuracy  types.Accuracy
	Priority  int

	index int // descriptor position, breaks priority ties
	re    *regexp2.Regexp
}

func (r *Rule) String() string {
	return fmt.Sprintf("priority: %d, category: %s, search_location: %s, relevance: %s, accuracy: %s, search_pattern: %s",
		r.Priority, r.Category, r.Location, r.Relevance, r.Accuracy, r.Pattern)
}

// priority derives the rule's rank. Higher runs first. The pattern length
// term prefers the more specific of two otherwise equal rules.
func priority(loc types.SearchLocation, rel types.Relevance, acc types.Accuracy, pattern string) int {
	return locationWeight[loc] + relevanceWeight[rel] + accuracyWeight[acc] + len(pattern)
}

// compileRule compiles one descriptor. Patterns are evaluated
// case-insensitively and against raw bytes; they are anchored exactly as
// written. The pattern is compiled with regexp2's RE2 syntax option
// first and recompiled with the default syntax when that fails.
func compileRule(d Descriptor, index int) (*Rule, error) {
	loc, err := types.ParseSearchLocation(d.SearchLocation)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedRule, err)
	}
	rel, err := types.ParseRelevance(d.Relevance)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedRule, err)
	}
	acc, err := types.ParseAccuracy(d.Accuracy)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedRule, err)
	}
	if d.SearchPattern == "" {
		return nil, fmt.Errorf("%w: empty search pattern", ErrMalformedRule)
	}

	re, err := regexp2.Compile(d.SearchPattern, regexp2.RE2|regexp2.IgnoreCase|regexp2.Multiline)
	if err != nil {
		re, err = regexp2.Compile(d.SearchPattern, regexp2.IgnoreCase|regexp2.Multiline)
		if err != nil {
			return nil, fmt.Errorf("%w: compiling %q: %v", ErrMalformedRule, d.SearchPattern, err)
		}
	}
	re.MatchTimeout = matchTimeout

	return &Rule{
		Location:  loc,
		Pattern:   d.SearchPattern,
		Category:  d.Category,
		Relevance: rel,
		Accuracy:  acc,
		Priority:  priority(loc, rel, acc, d.SearchPattern),
		index:     index,
		re:        re,
	}, nil
}
