package dispatch

import "github.com/LeventeLantos/schoolwire/internal/model"

// Eligible reports whether c may receive a message over ch.
//
//	sms:   phone present and not opted out
//	voice: phone present and telephone consent explicitly true
//	email: email present
//
// Unknown channels are never eligible.
func Eligible(c model.Contact, ch model.Channel) bool {
	switch ch {
	case model.SMS:
		return c.Phone != "" && !c.OptOutSMS.IsTrue()
	case model.Voice:
		return c.Phone != "" && c.TelephoneConsent.IsTrue()
	case model.Email:
		return c.Email != ""
	}
	return false
}
