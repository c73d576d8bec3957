package repo

import (
	"context"

	"github.com/LeventeLantos/schoolwire/internal/model"
)

type TemplateCatalog interface {
	List(ctx context.Context) ([]model.Template, error)
	Get(ctx context.Context, id string) (model.Template, bool, error)
}

// StaticCatalog serves a fixed template set.
type StaticCatalog struct {
	templates []model.Template
}

var _ TemplateCatalog = (*StaticCatalog)(nil)

func NewStaticCatalog(templates []model.Template) *StaticCatalog {
	cp := make([]model.Template, len(templates))
	copy(cp, templates)
	return &StaticCatalog{templates: cp}
}

func (c *StaticCatalog) List(ctx context.Context) ([]model.Template, error) {
	out := make([]model.Template, len(c.templates))
	copy(out, c.templates)
	return out, nil
}

func (c *StaticCatalog) Get(ctx context.Context, id string) (model.Template, bool, error) {
	for _, t := range c.templates {
		if t.ID == id {
			return t, true, nil
		}
	}
	return model.Template{}, false, nil
}

// DefaultTemplates is the district's stock template set.
func DefaultTemplates() []model.Template {
	return []model.Template{
		{
			ID:           "snow-day",
			Name:         "Snow Day – All schools closed.",
			SMS:          "School closed today due to weather. Stay safe.",
			Voice:        "This is the district calling: School is closed today due to weather. Please check email for details.",
			EmailSubject: "Snow Day – All Schools Closed",
			EmailBody:    "All schools are closed today. Buses will not run. We will update you with reopening details.",
		},
		{
			ID:           "late-start",
			Name:         "2-Hour Late Start – Bus routes shifted.",
			SMS:          "Two-hour late start today. Buses will run two hours later than usual.",
			Voice:        "This is the district calling: We are on a two-hour late start today. Buses will run two hours later than normal.",
			EmailSubject: "Two-Hour Late Start",
			EmailBody:    "We are on a two-hour late start today. School begins two hours later than normal and buses run accordingly.",
		},
		{
			ID:           "school-closure",
			Name:         "School-specific closure: [School Name].",
			SMS:          "Closure notice for your student's school. Check email for details.",
			Voice:        "This is the district calling about a school-specific closure. Please check your email for school-specific details.",
			EmailSubject: "School-Specific Closure",
			EmailBody:    "A school-specific closure is in effect. Please review the attached details for your student's school.",
		},
	}
}
