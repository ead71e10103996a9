package process

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/aretw0/redline/pkg/skill"
)

// ProcessConfig describes one external skill.
type ProcessConfig struct {
	Name        string            `yaml:"name" json:"name"`
	Command     string            `yaml:"command" json:"command"`
	Args        []string          `yaml:"args" json:"args"`
	Environment map[string]string `yaml:"env" json:"env"`
	Description string            `yaml:"description" json:"description"`
	Category    string            `yaml:"category" json:"category"`
	Domain      string            `yaml:"domain" json:"domain"`
	Params      []skill.Param     `yaml:"params" json:"params"`
	Output      []skill.Param     `yaml:"output" json:"output"`
	// Disabled keeps the entry registered but hidden from tool listings.
	Disabled bool `yaml:"disabled" json:"disabled"`
}

// ConfigFile represents the structure of skills.yaml.
type ConfigFile struct {
	Skills []ProcessConfig `yaml:"skills" json:"skills"`
}

// LoadSkills reads a configuration file (YAML or JSON) keyed by skill id.
// A missing file yields an empty map.
func LoadSkills(path string) (map[string]ProcessConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]ProcessConfig{}, nil
		}
		return nil, fmt.Errorf("failed to read skills config: %w", err)
	}

	var cfg ConfigFile
	if strings.ToLower(filepath.Ext(path)) == ".json" {
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	} else {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	}

	out := make(map[string]ProcessConfig, len(cfg.Skills))
	for _, s := range cfg.Skills {
		if s.Name == "" {
			continue
		}
		if s.Command == "" {
			return nil, fmt.Errorf("skill %q: command is required", s.Name)
		}
		out[s.Name] = s
	}
	return out, nil
}

// Skills converts the configs into registrable skills backed by r.
func Skills(r *Runner, configs map[string]ProcessConfig) []skill.Skill {
	names := make([]string, 0, len(configs))
	for name := range configs {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]skill.Skill, 0, len(names))
	for _, name := range names {
		c := configs[name]
		out = append(out, skill.Skill{
			ID:           name,
			Name:         name,
			Description:  c.Description,
			Params:       c.Params,
			Output:       c.Output,
			Backend:      skill.BackendProcess,
			Handler:      r.Handler(name),
			InputBuilder: skill.InputBuilderFunc(ClauseInput),
			Domain:       c.Domain,
			Category:     c.Category,
			Active:       !c.Disabled,
		})
	}
	return out
}
