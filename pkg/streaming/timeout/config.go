package timeout

import (
	"fmt"
	"io"
	"time"

	"gopkg.in/yaml.v3"
)

// presetSpec is the YAML shape of one preset. Durations use Go notation
// ("30s", "5m").
type presetSpec struct {
	FirstChunk  string `yaml:"first_chunk"`
	InterChunk  string `yaml:"inter_chunk"`
	TotalStream string `yaml:"total_stream"`
}

// presetFile is the YAML document shape:
//
//	presets:
//	  glm:
//	    first_chunk: 45s
//	    inter_chunk: 20s
//	    total_stream: 5m
type presetFile struct {
	Presets map[string]presetSpec `yaml:"presets"`
}

// LoadPresets reads per-backend policy presets from a YAML document.
// Every loaded policy is validated; a preset with a missing, unparseable,
// or non-positive duration fails the whole load.
func LoadPresets(r io.Reader) (map[string]Policy, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading timeout presets: %w", err)
	}

	var file presetFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parsing timeout presets: %w", err)
	}

	presets := make(map[string]Policy, len(file.Presets))
	for name, spec := range file.Presets {
		policy, err := spec.toPolicy()
		if err != nil {
			return nil, fmt.Errorf("preset %q: %w", name, err)
		}
		presets[name] = policy
	}
	return presets, nil
}

func (s presetSpec) toPolicy() (Policy, error) {
	first, err := parseDuration("first_chunk", s.FirstChunk)
	if err != nil {
		return Policy{}, err
	}
	inter, err := parseDuration("inter_chunk", s.InterChunk)
	if err != nil {
		return Policy{}, err
	}
	total, err := parseDuration("total_stream", s.TotalStream)
	if err != nil {
		return Policy{}, err
	}
	return New(first, inter, total)
}

func parseDuration(field, value string) (time.Duration, error) {
	if value == "" {
		return 0, fmt.Errorf("missing %s", field)
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", field, err)
	}
	return d, nil
}
