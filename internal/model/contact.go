package model

// Contact is the canonical recipient record.
type Contact struct {
	ID               string          `json:"id"`
	School           string          `json:"school,omitempty"`
	Grade            string          `json:"grade,omitempty"`
	BusRoute         string          `json:"busRoute,omitempty"`
	Phone            string          `json:"phone,omitempty"`
	Email            string          `json:"email,omitempty"`
	TelephoneConsent Flag            `json:"telephoneConsent"`
	OptOutSMS        Flag            `json:"optOutSMS"`
	Flags            map[string]Flag `json:"flags,omitempty"`
}

// Flag looks up a named flag. A missing key is FlagAbsent.
func (c Contact) Flag(name string) Flag {
	if c.Flags == nil {
		return FlagAbsent
	}
	return c.Flags[name]
}

// Clone returns a copy that shares no mutable state with c.
func (c Contact) Clone() Contact {
	if c.Flags != nil {
		flags := make(map[string]Flag, len(c.Flags))
		for k, v := range c.Flags {
			flags[k] = v
		}
		c.Flags = flags
	}
	return c
}

// ContactInput is a partial contact used for upserts. Unset fields keep the
// stored value.
type ContactInput struct {
	ID               string                    `json:"id" validate:"omitempty,max=128"`
	School           Optional[string]          `json:"school"`
	Grade            Optional[string]          `json:"grade"`
	BusRoute         Optional[string]          `json:"busRoute"`
	Phone            Optional[string]          `json:"phone"`
	Email            Optional[string]          `json:"email"`
	TelephoneConsent Flag                      `json:"telephoneConsent"`
	OptOutSMS        Flag                      `json:"optOutSMS"`
	Flags            Optional[map[string]Flag] `json:"flags"`
}

// MergeInto overwrites the fields of dst that the input supplies.
func (in ContactInput) MergeInto(dst Contact) Contact {
	out := dst.Clone()
	if v, ok := in.School.Get(); ok {
		out.School = v
	}
	if v, ok := in.Grade.Get(); ok {
		out.Grade = v
	}
	if v, ok := in.BusRoute.Get(); ok {
		out.BusRoute = v
	}
	if v, ok := in.Phone.Get(); ok {
		out.Phone = v
	}
	if v, ok := in.Email.Get(); ok {
		out.Email = v
	}
	if in.TelephoneConsent != FlagAbsent {
		out.TelephoneConsent = in.TelephoneConsent
	}
	if in.OptOutSMS != FlagAbsent {
		out.OptOutSMS = in.OptOutSMS
	}
	if v, ok := in.Flags.Get(); ok {
		out.Flags = Contact{Flags: v}.Clone().Flags
	}
	return out
}
