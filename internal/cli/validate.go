package cli

import (
	"errors"
	"fmt"
)

// CheckChecklists verifies that every required skill of every loaded domain
// resolves and is available in that domain.
func (a *App) CheckChecklists() error {
	var errs []error
	for _, domainID := range a.Plugins.Domains() {
		for _, item := range a.Plugins.Checklist(domainID) {
			for _, id := range item.RequiredSkills {
				s, err := a.Skills.Resolve(id)
				if err != nil {
					errs = append(errs, fmt.Errorf("%s clause %s: %w", domainID, item.ClauseID, err))
					continue
				}
				if !s.AvailableIn(domainID) {
					errs = append(errs, fmt.Errorf("%s clause %s: skill %s belongs to domain %s", domainID, item.ClauseID, id, s.Domain))
				}
			}
		}
	}
	return errors.Join(errs...)
}
