package model

import "time"

// Template holds the default content of each channel for one kind of notice.
type Template struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	SMS          string `json:"sms"`
	Voice        string `json:"voice"`
	EmailSubject string `json:"emailSubject"`
	EmailBody    string `json:"emailBody"`
}

// AudienceFilter selects contacts. Empty fields do not filter.
type AudienceFilter struct {
	School   string `json:"school,omitempty" validate:"max=256"`
	Grade    string `json:"grade,omitempty" validate:"max=64"`
	BusRoute string `json:"busRoute,omitempty" validate:"max=64"`
	Flag     string `json:"flag,omitempty" validate:"max=128"`
}

// IsEmpty reports whether f selects every contact.
func (f AudienceFilter) IsEmpty() bool {
	return f == AudienceFilter{}
}

// Overrides replace template content per channel. Empty fields fall back to the template.
type Overrides struct {
	SMS          string `json:"sms,omitempty" validate:"max=1600"`
	Voice        string `json:"voice,omitempty" validate:"max=4000"`
	EmailSubject string `json:"emailSubject,omitempty" validate:"max=256"`
	EmailBody    string `json:"emailBody,omitempty" validate:"max=20000"`
}

// Event is an immutable request to notify an audience with a template.
// ScheduledFor defaults to the creation time.
type Event struct {
	ID           string         `json:"id"`
	TemplateID   string         `json:"templateId"`
	Audience     AudienceFilter `json:"audience"`
	Overrides    Overrides      `json:"overrides"`
	ScheduledFor time.Time      `json:"scheduledFor"`
	CreatedAt    time.Time      `json:"createdAt"`
}
