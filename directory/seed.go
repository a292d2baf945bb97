package directory

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"legalpulse/validation"
)

//go:embed seed.yaml
var defaultSeed []byte

type seedFile struct {
	Records []Record `yaml:"records"`
}

// DefaultSeed returns the embedded provider list.
func DefaultSeed() ([]Record, error) {
	return ParseSeed(defaultSeed)
}

// LoadSeed reads a seed file from disk; an empty path selects the embedded seed.
func LoadSeed(path string) ([]Record, error) {
	if path == "" {
		return DefaultSeed()
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("directory: read seed: %w", err)
	}
	return ParseSeed(raw)
}

// ParseSeed decodes and validates seed YAML. Ids must be unique.
func ParseSeed(raw []byte) ([]Record, error) {
	var f seedFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("directory: decode seed: %w", err)
	}
	if len(f.Records) == 0 {
		return nil, fmt.Errorf("directory: seed has no records")
	}

	seen := make(map[int]struct{}, len(f.Records))
	for i, r := range f.Records {
		if err := validation.Struct(r); err != nil {
			return nil, fmt.Errorf("directory: seed record %d: %w", i, err)
		}
		if _, dup := seen[r.ID]; dup {
			return nil, fmt.Errorf("directory: duplicate seed id %d", r.ID)
		}
		seen[r.ID] = struct{}{}
	}
	return f.Records, nil
}
