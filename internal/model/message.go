package model

import (
	"bytes"
	"encoding/json"
	"time"
)

// Channel names a delivery medium. Values outside the constants below are
// carried through and never dispatched.
type Channel string

const (
	SMS   Channel = "sms"
	Voice Channel = "voice"
	Email Channel = "email"
)

// DefaultChannels is used when a send request names no channels.
var DefaultChannels = []Channel{SMS, Voice, Email}

// Status is the delivery status reported for a message. Providers may send
// values outside the known set; those are kept verbatim and classified as
// StatusOther.
type Status string

const (
	Queued    Status = "queued"
	Sent      Status = "sent"
	Delivered Status = "delivered"
	Failed    Status = "failed"
	Answered  Status = "answered"
)

// StatusKind is the closed classification of a Status.
type StatusKind int

const (
	StatusOther StatusKind = iota
	StatusQueued
	StatusSent
	StatusDelivered
	StatusFailed
	StatusAnswered
)

// Kind maps s onto its classification; unrecognised values are StatusOther.
func (s Status) Kind() StatusKind {
	switch s {
	case Queued:
		return StatusQueued
	case Sent:
		return StatusSent
	case Delivered:
		return StatusDelivered
	case Failed:
		return StatusFailed
	case Answered:
		return StatusAnswered
	}
	return StatusOther
}

type EmailContent struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// Content is the resolved payload of a message: plain text for sms and voice,
// subject and body for email.
type Content struct {
	Text  string
	Email *EmailContent
}

func TextContent(s string) Content { return Content{Text: s} }

func EmailContentOf(subject, body string) Content {
	return Content{Email: &EmailContent{Subject: subject, Body: body}}
}

func (c Content) MarshalJSON() ([]byte, error) {
	if c.Email != nil {
		return json.Marshal(c.Email)
	}
	return json.Marshal(c.Text)
}

func (c *Content) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '{' {
		var e EmailContent
		if err := json.Unmarshal(data, &e); err != nil {
			return err
		}
		*c = Content{Email: &e}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*c = Content{Text: s}
	return nil
}

// MessageRecord tracks one message to one recipient over one channel.
type MessageRecord struct {
	ID                string         `json:"id"`
	EventID           string         `json:"eventId"`
	RecipientID       string         `json:"recipientId"`
	Channel           Channel        `json:"channel"`
	ProviderMessageID string         `json:"providerMessageId"`
	Status            Status         `json:"status"`
	Answered          Optional[bool] `json:"answered"`
	CreatedAt         time.Time      `json:"createdAt"`
	UpdatedAt         time.Time      `json:"updatedAt"`
	Content           Content        `json:"content"`
}

// StatusUpdate carries a provider callback. Unset fields leave the record untouched.
type StatusUpdate struct {
	Status   Optional[Status]
	Answered Optional[bool]
}

// Apply writes the supplied fields of u into rec and stamps it with at.
func (u StatusUpdate) Apply(rec *MessageRecord, at time.Time) {
	if s, ok := u.Status.Get(); ok && s != "" {
		rec.Status = s
	}
	if u.Answered.Set {
		rec.Answered = u.Answered
	}
	rec.UpdatedAt = at
}

type Summary struct {
	Total    int            `json:"total"`
	ByStatus map[Status]int `json:"byStatus"`
}

// Summarize aggregates records by status.
func Summarize(records []MessageRecord) Summary {
	s := Summary{ByStatus: map[Status]int{}}
	for _, r := range records {
		s.Total++
		s.ByStatus[r.Status]++
	}
	return s
}
