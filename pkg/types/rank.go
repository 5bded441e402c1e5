package types

import "fmt"

// Relevance expresses how interesting a matched file is to a reviewer.
type Relevance int

const (
	RelevanceLow Relevance = iota + 1
	RelevanceMedium
	RelevanceHigh
)

// Accuracy expresses how likely a rule's pattern is to produce false
// positives (low accuracy matches loosely, high accuracy tightly).
type Accuracy int

const (
	AccuracyLow Accuracy = iota + 1
	AccuracyMedium
	AccuracyHigh
)

// ParseRelevance converts the configuration spelling to a Relevance.
func ParseRelevance(s string) (Relevance, error) {
	switch s {
	case "low":
		return RelevanceLow, nil
	case "medium":
		return RelevanceMedium, nil
	case "high":
		return RelevanceHigh, nil
	}
	return 0, fmt.Errorf("unknown relevance %q", s)
}

// ParseAccuracy converts the configuration spelling to an Accuracy.
func ParseAccuracy(s string) (Accuracy, error) {
	switch s {
	case "low":
		return AccuracyLow, nil
	case "medium":
		return AccuracyMedium, nil
	case "high":
		return AccuracyHigh, nil
	}
	return 0, fmt.Errorf("unknown accuracy %q", s)
}

func (r Relevance) String() string {
	switch r {
	case RelevanceLow:
		return "low"
	case RelevanceMedium:
		return "medium"
	case RelevanceHigh:
		return "high"
	}
	return fmt.Sprintf("Relevance(%d)", int(r))
}

func (a Accuracy) String() string {
	switch a {
	case AccuracyLow:
		return "low"
	case AccuracyMedium:
		return "medium"
	case AccuracyHigh:
		return "high"
	}
	return fmt.Sprintf("Accuracy(%d)", int(a))
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (r *Relevance) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	parsed, err := ParseRelevance(s)
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (a *Accuracy) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	parsed, err := ParseAccuracy(s)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (r Relevance) MarshalYAML() (interface{}, error) {
	return r.String(), nil
}

// MarshalYAML implements yaml.Marshaler.
func (a Accuracy) MarshalYAML() (interface{}, error) {
	return a.String(), nil
}
