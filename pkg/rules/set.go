package rules

import (
	"fmt"
	"sort"

	"github.com/huntlab/filehound/pkg/types"
)

// Set is the compiled, priority-sorted rule collection plus its three
// views partitioned by search location. A Set is immutable and freely
// shared across workers.
type Set struct {
	All []*Rule

	content  []*Rule
	fullPath []*Rule
	fileName []*Rule
}

// Compile builds a Set from descriptors. Descriptor order is preserved as
// the deterministic tie-break between equal priorities.
func Compile(descs []Descriptor) (*Set, error) {
	s := &Set{}
	for i, d := range descs {
		r, err := compileRule(d, i)
		if err != nil {
			return nil, fmt.Errorf("rule %d: %w", i, err)
		}
		s.All = append(s.All, r)
	}

	sort.SliceStable(s.All, func(i, j int) bool {
		if s.All[i].Priority != s.All[j].Priority {
			return s.All[i].Priority > s.All[j].Priority
		}
		return s.All[i].index < s.All[j].index
	})

	for _, r := range s.All {
		switch r.Location {
		case types.LocationFileContent:
			s.content = append(s.content, r)
		case types.LocationFullPath:
			s.fullPath = append(s.fullPath, r)
		case types.LocationFileName:
			s.fileName = append(s.fileName, r)
		}
	}
	return s, nil
}

// View returns the priority-ordered rules for one search location.
func (s *Set) View(loc types.SearchLocation) []*Rule {
	switch loc {
	case types.LocationFileContent:
		return s.content
	case types.LocationFullPath:
		return s.fullPath
	case types.LocationFileName:
		return s.fileName
	}
	return nil
}

// Span is the byte range of a successful match within the subject.
type Span struct {
	Start int
	End   int
}

// Match applies a view to the subject in priority order and returns the
// first rule whose pattern succeeds. The subject is treated as raw bytes;
// regex evaluation never decodes it.
func Match(view []*Rule, subject []byte) (*Rule, Span, bool) {
	// regexp2 matches over runes. Each byte becomes one rune of the same
	// value, so the subject is never decoded as UTF-8 and match offsets
	// are byte offsets.
	runes := make([]rune, len(subject))
	for i, b := range subject {
		runes[i] = rune(b)
	}
	for _, r := range view {
		m, err := r.re.FindRunesMatch(runes)
		if err != nil || m == nil {
			// Timeouts count as no match for this rule; lower-priority
			// rules still get their chance.
			continue
		}
		return r, Span{Start: m.Index, End: m.Index + m.Length}, true
	}
	return nil, Span{}, false
}
