package plugin

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/aretw0/redline/pkg/domain"
	"github.com/aretw0/redline/pkg/skill"
)

// Definition is the YAML form of a plugin.
type Definition struct {
	Domain      string                 `yaml:"domain"`
	Name        string                 `yaml:"name"`
	Description string                 `yaml:"description,omitempty"`
	Checklist   []domain.ChecklistItem `yaml:"checklist"`
	Baselines   map[string]string      `yaml:"baselines,omitempty"`
	Skills      []RemoteSkill          `yaml:"skills,omitempty"`
}

// RemoteSkill declares a skill executed by a remote workflow endpoint.
type RemoteSkill struct {
	ID          string        `yaml:"id"`
	Name        string        `yaml:"name,omitempty"`
	Description string        `yaml:"description"`
	Endpoint    string        `yaml:"endpoint"`
	Category    string        `yaml:"category,omitempty"`
	Params      []skill.Param `yaml:"params,omitempty"`
	Output      []skill.Param `yaml:"output,omitempty"`
	Inactive    bool          `yaml:"inactive,omitempty"`
	// Timeout overrides the dispatcher's per-skill limit, e.g. "2m".
	Timeout time.Duration `yaml:"timeout,omitempty"`
}

// Validate reports structural problems in the definition.
func (d Definition) Validate() error {
	if strings.TrimSpace(d.Domain) == "" {
		return fmt.Errorf("plugin: domain is required")
	}
	seen := make(map[string]bool, len(d.Checklist))
	for i, item := range d.Checklist {
		id := strings.TrimSpace(item.ClauseID)
		if id == "" {
			return fmt.Errorf("plugin %s: checklist[%d]: clause_id is required", d.Domain, i)
		}
		if seen[id] {
			return fmt.Errorf("plugin %s: duplicate checklist clause %q", d.Domain, id)
		}
		seen[id] = true
	}
	for i, s := range d.Skills {
		if strings.TrimSpace(s.ID) == "" {
			return fmt.Errorf("plugin %s: skills[%d]: id is required", d.Domain, i)
		}
		if strings.TrimSpace(s.Endpoint) == "" {
			return fmt.Errorf("plugin %s: skill %s: endpoint is required", d.Domain, s.ID)
		}
	}
	return nil
}

// Normalized trims identifiers and fills defaulted fields.
func (d Definition) Normalized() Definition {
	d.Domain = strings.TrimSpace(d.Domain)
	if d.Name == "" {
		d.Name = d.Domain
	}
	items := make([]domain.ChecklistItem, len(d.Checklist))
	for i, item := range d.Checklist {
		item.ClauseID = strings.TrimSpace(item.ClauseID)
		if item.Name == "" {
			item.Name = item.ClauseID
		}
		if item.Priority == "" {
			item.Priority = domain.PriorityMedium
		}
		items[i] = item
	}
	d.Checklist = items
	return d
}

// Plugin converts the definition. Remote skills call their endpoint with client.
func (d Definition) Plugin(client *http.Client) Plugin {
	p := Plugin{
		DomainID:    d.Domain,
		Name:        d.Name,
		Description: d.Description,
		Checklist:   d.Checklist,
		Baselines:   d.Baselines,
	}
	for _, rs := range d.Skills {
		p.Skills = append(p.Skills, skill.Skill{
			ID:          rs.ID,
			Name:        rs.Name,
			Description: rs.Description,
			Params:      rs.Params,
			Output:      rs.Output,
			Backend:     skill.BackendRemote,
			Handler:     skill.NewRemoteHandler(rs.Endpoint, client),
			Domain:      d.Domain,
			Category:    rs.Category,
			Active:      !rs.Inactive,
			Timeout:     rs.Timeout,
		})
	}
	return p
}

// ParseYAML decodes and validates a single plugin definition.
func ParseYAML(data []byte) (Definition, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return Definition{}, fmt.Errorf("plugin: definition payload is empty")
	}
	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return Definition{}, fmt.Errorf("plugin: decode definition: %w", err)
	}
	if err := def.Validate(); err != nil {
		return Definition{}, err
	}
	return def.Normalized(), nil
}

// LoadFile reads one YAML plugin definition from disk.
func LoadFile(path string) (Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Definition{}, fmt.Errorf("plugin: read %s: %w", path, err)
	}
	def, err := ParseYAML(data)
	if err != nil {
		return Definition{}, fmt.Errorf("plugin: %s: %w", path, err)
	}
	return def, nil
}

// LoadDir loads every *.yaml or *.yml definition in dir, sorted by file name.
// A missing directory yields no definitions.
func LoadDir(dir string) ([]Definition, error) {
	trimmed := strings.TrimSpace(dir)
	if trimmed == "" {
		return nil, nil
	}
	entries, err := os.ReadDir(trimmed)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("plugin: read %s: %w", trimmed, err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() && isYAMLFile(entry.Name()) {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	defs := make([]Definition, 0, len(names))
	for _, name := range names {
		def, err := LoadFile(filepath.Join(trimmed, name))
		if err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}
	return defs, nil
}

func isYAMLFile(name string) bool {
	lower := strings.ToLower(strings.TrimSpace(name))
	return strings.HasSuffix(lower, ".yaml") || strings.HasSuffix(lower, ".yml")
}
