package schema

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

// Mapping names the header aliases one vintage of the source files uses for
// each logical field. Aliases are matched against normalized headers, in
// order, and the first present alias wins.
type Mapping struct {
	Version   string   `yaml:"version"`
	Date      []string `yaml:"date"`
	Origin    []string `yaml:"origin"`
	Dest      []string `yaml:"dest"`
	Cancelled []string `yaml:"cancelled"`
	Carrier   []string `yaml:"carrier"`
}

var (
	cancelledAliases = []string{"CANCELLED", "CANCELED"}
	carrierAliases   = []string{"UNIQUE_CARRIER", "MARKETING_AIRLINE_NETWORK"}
)

// defaultMappings are tried in order. The first mapping whose date, origin
// and dest all resolve is used for the file.
var defaultMappings = []Mapping{
	{
		Version:   "transtats",
		Date:      []string{"FL_DATE"},
		Origin:    []string{"ORIGIN"},
		Dest:      []string{"DEST"},
		Cancelled: cancelledAliases,
		Carrier:   carrierAliases,
	},
	{
		Version:   "prezip",
		Date:      []string{"FLIGHTDATE"},
		Origin:    []string{"ORIGIN"},
		Dest:      []string{"DEST"},
		Cancelled: cancelledAliases,
		Carrier:   carrierAliases,
	},
	{
		Version:   "legacy",
		Date:      []string{"FLIGHT_DATE"},
		Origin:    []string{"ORIGIN"},
		Dest:      []string{"DEST"},
		Cancelled: cancelledAliases,
		Carrier:   carrierAliases,
	},
}

// DefaultMappings returns a copy of the built-in mapping table.
func DefaultMappings() []Mapping {
	out := make([]Mapping, len(defaultMappings))
	for i, m := range defaultMappings {
		out[i] = m.normalized()
	}
	return out
}

type mappingFile struct {
	Mappings []Mapping `yaml:"mappings"`
}

// LoadMappings reads a YAML mapping table. The result replaces the built-in
// table entirely.
func LoadMappings(path string) ([]Mapping, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read mappings: %w", err)
	}
	return ParseMappings(data)
}

// ParseMappings decodes and validates a YAML mapping table.
func ParseMappings(data []byte) ([]Mapping, error) {
	var f mappingFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse mappings: %w", err)
	}
	if len(f.Mappings) == 0 {
		return nil, errors.New("parse mappings: no mappings defined")
	}

	seen := make(map[string]bool)
	out := make([]Mapping, 0, len(f.Mappings))
	for i, m := range f.Mappings {
		m = m.normalized()
		if err := m.validate(); err != nil {
			return nil, fmt.Errorf("mapping %d: %w", i, err)
		}
		if seen[m.Version] {
			return nil, fmt.Errorf("mapping %d: duplicate version %q", i, m.Version)
		}
		seen[m.Version] = true
		out = append(out, m)
	}
	return out, nil
}

func (m Mapping) validate() error {
	if m.Version == "" {
		return errors.New("version is required")
	}
	if len(m.Date) == 0 {
		return fmt.Errorf("%s: at least one date alias is required", m.Version)
	}
	if len(m.Origin) == 0 || len(m.Dest) == 0 {
		return fmt.Errorf("%s: origin and dest aliases are required", m.Version)
	}
	return nil
}

func (m Mapping) normalized() Mapping {
	return Mapping{
		Version:   m.Version,
		Date:      normalizeAliases(m.Date),
		Origin:    normalizeAliases(m.Origin),
		Dest:      normalizeAliases(m.Dest),
		Cancelled: normalizeAliases(m.Cancelled),
		Carrier:   normalizeAliases(m.Carrier),
	}
}

func normalizeAliases(in []string) []string {
	out := make([]string, 0, len(in))
	for _, a := range in {
		if a = NormalizeHeader(a); a != "" {
			out = append(out, a)
		}
	}
	return out
}

// MarshalMappings renders a mapping table in the format LoadMappings reads.
func MarshalMappings(mappings []Mapping) ([]byte, error) {
	data, err := yaml.Marshal(mappingFile{Mappings: mappings})
	if err != nil {
		return nil, fmt.Errorf("marshal mappings: %w", err)
	}
	return data, nil
}
