package content

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LeventeLantos/schoolwire/internal/model"
)

var tpl = model.Template{
	ID:           "snow-day",
	SMS:          "sms default",
	Voice:        "voice default",
	EmailSubject: "subject default",
	EmailBody:    "body default",
}

func TestResolve_TemplateDefaults(t *testing.T) {
	assert.Equal(t, model.TextContent("sms default"), Resolve(tpl, model.Overrides{}, model.SMS))
	assert.Equal(t, model.TextContent("voice default"), Resolve(tpl, model.Overrides{}, model.Voice))
	assert.Equal(t, model.EmailContentOf("subject default", "body default"), Resolve(tpl, model.Overrides{}, model.Email))
}

func TestResolve_OverridesWin(t *testing.T) {
	o := model.Overrides{SMS: "sms override", Voice: "voice override"}

	assert.Equal(t, "sms override", Resolve(tpl, o, model.SMS).Text)
	assert.Equal(t, "voice override", Resolve(tpl, o, model.Voice).Text)
}

func TestResolve_EmailFieldsFallBackIndependently(t *testing.T) {
	got := Resolve(tpl, model.Overrides{EmailBody: "custom body"}, model.Email)
	require.NotNil(t, got.Email)
	assert.Equal(t, "subject default", got.Email.Subject)
	assert.Equal(t, "custom body", got.Email.Body)

	got = Resolve(tpl, model.Overrides{EmailSubject: "custom subject"}, model.Email)
	require.NotNil(t, got.Email)
	assert.Equal(t, "custom subject", got.Email.Subject)
	assert.Equal(t, "body default", got.Email.Body)
}

func TestResolve_EmptyOverrideFallsBack(t *testing.T) {
	assert.Equal(t, "sms default", Resolve(tpl, model.Overrides{SMS: ""}, model.SMS).Text)
}
