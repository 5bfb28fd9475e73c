package formation

import (
	"context"
	"strconv"

	"github.com/okian/kickoff/internal/domain/model"
)

// StaticTemplates serves overrides from configuration, keyed by team size.
// The key "4s" addresses the simplified 4v4 layout.
type StaticTemplates map[string]model.Formation

// Template implements TemplateProvider.
func (s StaticTemplates) Template(_ context.Context, teamSize int, simplified bool) (model.Formation, bool, error) {
	k := strconv.Itoa(teamSize)
	if simplified {
		k += "s"
	}
	f, ok := s[k]
	return f, ok, nil
}

// ChainTemplates consults providers in order and returns the first hit.
type ChainTemplates []TemplateProvider

// Template implements TemplateProvider.
func (c ChainTemplates) Template(ctx context.Context, teamSize int, simplified bool) (model.Formation, bool, error) {
	for _, p := range c {
		if p == nil {
			continue
		}
		f, ok, err := p.Template(ctx, teamSize, simplified)
		if err != nil {
			return model.Formation{}, false, err
		}
		if ok {
			return f, true, nil
		}
	}
	return model.Formation{}, false, nil
}
