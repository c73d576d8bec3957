package audience

import (
	"context"

	"github.com/LeventeLantos/schoolwire/internal/model"
)

type ContactLister interface {
	List(ctx context.Context) ([]model.Contact, error)
}

// Resolver selects the contacts an audience filter targets.
type Resolver struct {
	contacts ContactLister
}

func NewResolver(contacts ContactLister) *Resolver {
	return &Resolver{contacts: contacts}
}

// Resolve returns the matching contacts in directory order. Filter fields are
// ANDed; empty fields match everything.
func (r *Resolver) Resolve(ctx context.Context, f model.AudienceFilter) ([]model.Contact, error) {
	all, err := r.contacts.List(ctx)
	if err != nil {
		return nil, err
	}
	if f.IsEmpty() {
		return all, nil
	}

	out := make([]model.Contact, 0, len(all))
	for _, c := range all {
		if Matches(f, c) {
			out = append(out, c)
		}
	}
	return out, nil
}

func Matches(f model.AudienceFilter, c model.Contact) bool {
	if f.School != "" && c.School != f.School {
		return false
	}
	if f.Grade != "" && c.Grade != f.Grade {
		return false
	}
	if f.BusRoute != "" && c.BusRoute != f.BusRoute {
		return false
	}
	if f.Flag != "" && !c.Flag(f.Flag).IsTrue() {
		return false
	}
	return true
}
