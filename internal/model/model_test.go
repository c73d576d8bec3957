package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlag_OnlyLiteralTrueIsTrue(t *testing.T) {
	cases := map[string]Flag{
		`true`:    FlagTrue,
		`false`:   FlagFalse,
		`null`:    FlagAbsent,
		`"true"`:  FlagFalse,
		`1`:       FlagFalse,
		`{"a":1}`: FlagFalse,
	}
	for raw, want := range cases {
		var f Flag
		require.NoError(t, json.Unmarshal([]byte(raw), &f), raw)
		assert.Equal(t, want, f, raw)
	}
}

func TestContactInput_MissingFlagsStayAbsent(t *testing.T) {
	var in ContactInput
	require.NoError(t, json.Unmarshal([]byte(`{"id":"c1","phone":"555-1"}`), &in))

	assert.Equal(t, FlagAbsent, in.TelephoneConsent)
	assert.Equal(t, FlagAbsent, in.OptOutSMS)
	assert.False(t, in.Email.Set)
	assert.True(t, in.Phone.Set)
	assert.False(t, in.Flags.Set)
}

func TestContactInput_MergeIntoKeepsUnsuppliedFields(t *testing.T) {
	existing := Contact{
		ID:               "c1",
		School:           "Lincoln",
		Phone:            "555-1",
		Email:            "a@x.com",
		TelephoneConsent: FlagTrue,
		Flags:            map[string]Flag{"transport": FlagTrue},
	}

	var in ContactInput
	require.NoError(t, json.Unmarshal([]byte(`{"id":"c1","phone":"","optOutSMS":true}`), &in))

	merged := in.MergeInto(existing)

	assert.Equal(t, "Lincoln", merged.School)
	assert.Equal(t, "", merged.Phone, "explicit empty phone overwrites")
	assert.Equal(t, "a@x.com", merged.Email)
	assert.Equal(t, FlagTrue, merged.TelephoneConsent)
	assert.Equal(t, FlagTrue, merged.OptOutSMS)
	assert.Equal(t, FlagTrue, merged.Flag("transport"))

	merged.Flags["transport"] = FlagFalse
	assert.Equal(t, FlagTrue, existing.Flags["transport"], "merge must not alias the stored flags map")
}

func TestContact_FlagLookup(t *testing.T) {
	c := Contact{Flags: map[string]Flag{"a": FlagTrue, "b": FlagFalse}}

	assert.True(t, c.Flag("a").IsTrue())
	assert.Equal(t, FlagFalse, c.Flag("b"))
	assert.Equal(t, FlagAbsent, c.Flag("missing"))
	assert.Equal(t, FlagAbsent, Contact{}.Flag("a"))
}

func TestContent_JSONShapePerChannel(t *testing.T) {
	b, err := json.Marshal(TextContent("hello"))
	require.NoError(t, err)
	assert.JSONEq(t, `"hello"`, string(b))

	b, err = json.Marshal(EmailContentOf("subj", "body"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"subject":"subj","body":"body"}`, string(b))

	var c Content
	require.NoError(t, json.Unmarshal([]byte(`{"subject":"s","body":"b"}`), &c))
	require.NotNil(t, c.Email)
	assert.Equal(t, "s", c.Email.Subject)

	require.NoError(t, json.Unmarshal([]byte(`"plain"`), &c))
	assert.Nil(t, c.Email)
	assert.Equal(t, "plain", c.Text)
}

func TestMessageRecord_AnsweredSerializesAsNullWhenUnset(t *testing.T) {
	b, err := json.Marshal(MessageRecord{Status: Queued})
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(b, &m))
	v, ok := m["answered"]
	assert.True(t, ok)
	assert.Nil(t, v)
}

func TestStatus_Kind(t *testing.T) {
	assert.Equal(t, StatusQueued, Queued.Kind())
	assert.Equal(t, StatusAnswered, Answered.Kind())
	assert.Equal(t, StatusOther, Status("busy").Kind())
}

func TestStatusUpdate_Apply(t *testing.T) {
	rec := MessageRecord{Status: Sent, Answered: Some(false)}

	StatusUpdate{Answered: Some(true)}.Apply(&rec, rec.UpdatedAt)
	assert.Equal(t, Sent, rec.Status, "status untouched when not supplied")
	assert.True(t, rec.Answered.Value)

	StatusUpdate{Status: Some(Delivered)}.Apply(&rec, rec.UpdatedAt)
	assert.Equal(t, Delivered, rec.Status)
	assert.True(t, rec.Answered.Value, "answered untouched when not supplied")

	StatusUpdate{Status: Some(Status(""))}.Apply(&rec, rec.UpdatedAt)
	assert.Equal(t, Delivered, rec.Status, "empty status is treated as absent")
}

func TestOptional_NullIsUnset(t *testing.T) {
	var o Optional[bool]
	require.NoError(t, json.Unmarshal([]byte(`null`), &o))
	assert.False(t, o.Set)

	require.NoError(t, json.Unmarshal([]byte(`false`), &o))
	v, ok := o.Get()
	assert.True(t, ok)
	assert.False(t, v)
	assert.True(t, None[bool]().Or(true))
}

func TestSummarize(t *testing.T) {
	s := Summarize([]MessageRecord{{Status: Queued}, {Status: Queued}, {Status: Delivered}})

	assert.Equal(t, 3, s.Total)
	assert.Equal(t, 2, s.ByStatus[Queued])
	assert.Equal(t, 1, s.ByStatus[Delivered])
}
