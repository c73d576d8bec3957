package content

import "github.com/LeventeLantos/schoolwire/internal/model"

// Resolve picks the content for channel, preferring overrides over template
// defaults. Email subject and body fall back independently. Channels other
// than sms and voice resolve to email content; eligibility is checked by the
// caller.
func Resolve(t model.Template, o model.Overrides, ch model.Channel) model.Content {
	switch ch {
	case model.SMS:
		return model.TextContent(firstNonEmpty(o.SMS, t.SMS))
	case model.Voice:
		return model.TextContent(firstNonEmpty(o.Voice, t.Voice))
	default:
		return model.EmailContentOf(
			firstNonEmpty(o.EmailSubject, t.EmailSubject),
			firstNonEmpty(o.EmailBody, t.EmailBody),
		)
	}
}

func firstNonEmpty(override, def string) string {
	if override != "" {
		return override
	}
	return def
}
