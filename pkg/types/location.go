package types

import "fmt"

// SearchLocation selects which representation of a file a rule is applied
// to. The three values are closed; rule views are partitioned by them at
// compile time.
type SearchLocation int

const (
	LocationFileName SearchLocation = iota + 1
	LocationFullPath
	LocationFileContent
)

// ParseSearchLocation converts the configuration spelling to a SearchLocation.
func ParseSearchLocation(s string) (SearchLocation, error) {
	switch s {
	case "file_name":
		return LocationFileName, nil
	case "full_path":
		return LocationFullPath, nil
	case "file_content":
		return LocationFileContent, nil
	}
	return 0, fmt.Errorf("unknown search location %q", s)
}

// String returns the configuration spelling.
func (l SearchLocation) String() string {
	switch l {
	case LocationFileName:
		return "file_name"
	case LocationFullPath:
		return "full_path"
	case LocationFileContent:
		return "file_content"
	}
	return fmt.Sprintf("SearchLocation(%d)", int(l))
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (l *SearchLocation) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	parsed, err := ParseSearchLocation(s)
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (l SearchLocation) MarshalYAML() (interface{}, error) {
	return l.String(), nil
}
