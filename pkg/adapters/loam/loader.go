// Package loam loads domain checklists from a directory of markdown documents
// managed by Loam. Each document describes one clause: the frontmatter holds the
// checklist fields and the body holds the reviewer guidance.
package loam

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/aretw0/loam"

	"github.com/aretw0/redline/pkg/domain"
	"github.com/aretw0/redline/pkg/plugin"
)

// Loader adapts a Loam repository to checklist items.
type Loader struct {
	Repo *loam.TypedRepository[ChecklistMetadata]
}

// New creates a new Loam adapter.
func New(repo *loam.TypedRepository[ChecklistMetadata]) *Loader {
	return &Loader{
		Repo: repo,
	}
}

// Open initializes a read-only Loam repository at dir.
func Open(dir string) (*Loader, error) {
	absPath, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("invalid path: %w", err)
	}
	// Strict mode keeps numeric frontmatter consistent across markdown and JSON documents.
	repo, err := loam.Init(absPath,
		loam.WithStrict(true),
		loam.WithReadOnly(true),
	)
	if err != nil {
		return nil, fmt.Errorf("open checklist repository %s: %w", dir, err)
	}
	return New(loam.NewTypedRepository[ChecklistMetadata](repo)), nil
}

type entry struct {
	docID string
	item  domain.ChecklistItem
	base  string
}

func (l *Loader) load(ctx context.Context) ([]entry, error) {
	docs, err := l.Repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("loam list failed: %w", err)
	}

	entries := make([]entry, 0, len(docs))
	seen := make(map[string]string, len(docs))
	for _, listed := range docs {
		// List carries frontmatter only; the guidance body needs a Get.
		doc, err := l.Repo.Get(ctx, listed.ID)
		if err != nil {
			return nil, fmt.Errorf("loam get failed for %s: %w", listed.ID, err)
		}
		meta := doc.Data
		clauseID := strings.TrimSpace(meta.ClauseID)
		if clauseID == "" {
			clauseID = trimExtension(doc.ID)
		}
		if prev, ok := seen[clauseID]; ok {
			return nil, fmt.Errorf("collision detected: clause '%s' is defined in both '%s' and '%s'", clauseID, prev, doc.ID)
		}
		seen[clauseID] = doc.ID

		name := meta.Name
		if name == "" {
			name = clauseID
		}
		priority := domain.Priority(strings.ToLower(strings.TrimSpace(meta.Priority)))
		if priority == "" {
			priority = domain.PriorityMedium
		}

		entries = append(entries, entry{
			docID: doc.ID,
			item: domain.ChecklistItem{
				ClauseID:       clauseID,
				Name:           name,
				Priority:       priority,
				RequiredSkills: meta.RequiredSkills,
				Guidance:       strings.TrimSpace(doc.Content),
			},
			base: strings.TrimSpace(meta.Baseline),
		})
	}

	// Document ids order the checklist, so prefixes like "01-" control review order.
	sort.Slice(entries, func(i, j int) bool { return entries[i].docID < entries[j].docID })
	return entries, nil
}

// Checklist returns the checklist items in document order.
func (l *Loader) Checklist(ctx context.Context) ([]domain.ChecklistItem, error) {
	entries, err := l.load(ctx)
	if err != nil {
		return nil, err
	}
	items := make([]domain.ChecklistItem, len(entries))
	for i, e := range entries {
		items[i] = e.item
	}
	return items, nil
}

// Plugin builds a domain plugin from the repository contents.
func (l *Loader) Plugin(ctx context.Context, domainID string) (plugin.Plugin, error) {
	entries, err := l.load(ctx)
	if err != nil {
		return plugin.Plugin{}, err
	}

	p := plugin.Plugin{
		DomainID:  domainID,
		Name:      domainID,
		Checklist: make([]domain.ChecklistItem, 0, len(entries)),
		Baselines: make(map[string]string),
	}
	for _, e := range entries {
		p.Checklist = append(p.Checklist, e.item)
		if e.base != "" {
			p.Baselines[e.item.ClauseID] = e.base
		}
	}
	return p, nil
}

func trimExtension(id string) string {
	ext := filepath.Ext(id)
	if ext != "" {
		return filepath.ToSlash(strings.TrimSuffix(id, ext))
	}
	return filepath.ToSlash(id)
}
