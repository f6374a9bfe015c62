package reminder

import "time"

// ChannelWindow is the timing window for one outbound channel: how far before
// a reminder's due date its items become sendable, and how long after the send
// date they remain sendable before lapsing.
type ChannelWindow struct {
	Lead   Interval `json:"lead"`
	Cancel Interval `json:"cancel"`
}

// Configuration holds the per-channel timing windows used when reminder items
// are created and sent. Pure value object; one per practice.
type Configuration struct {
	Email  ChannelWindow `json:"email"`
	SMS    ChannelWindow `json:"sms"`
	Print  ChannelWindow `json:"print"`
	Export ChannelWindow `json:"export"`
	List   ChannelWindow `json:"list"`
	// EmailAttachments selects attached documents over inline bodies.
	EmailAttachments bool `json:"email_attachments"`
}

// DefaultConfiguration mirrors the windows a new practice starts with.
func DefaultConfiguration() Configuration {
	lead := func(n int) ChannelWindow {
		return ChannelWindow{
			Lead:   Interval{Count: n, Units: Days},
			Cancel: Interval{Count: 2, Units: Weeks},
		}
	}
	return Configuration{
		Email:  lead(3),
		SMS:    lead(3),
		Print:  lead(14),
		Export: lead(14),
		List:   lead(14),
	}
}

func (c Configuration) window(kind ItemKind) ChannelWindow {
	switch kind {
	case KindEmail:
		return c.Email
	case KindSMS:
		return c.SMS
	case KindPrint:
		return c.Print
	case KindExport:
		return c.Export
	default:
		return c.List
	}
}

// SendDate returns the send-from date for an item of the given kind, prior to
// the due date by the channel's lead period.
func (c Configuration) SendDate(dueDate time.Time, kind ItemKind) time.Time {
	return c.window(kind).Lead.SubtractFrom(dueDate)
}

// CancelDate returns the date after which an unsent item of the given kind
// should lapse rather than be sent.
func (c Configuration) CancelDate(sendDate time.Time, kind ItemKind) time.Time {
	return c.window(kind).Cancel.AddTo(sendDate)
}

// MaxLeadTime returns the furthest send horizon from the given date across
// all channels. Used to bound the due-reminder query.
func (c Configuration) MaxLeadTime(from time.Time) time.Time {
	result := c.Email.Lead.AddTo(from)
	result = MaxDate(result, c.SMS.Lead.AddTo(from))
	result = MaxDate(result, c.Print.Lead.AddTo(from))
	result = MaxDate(result, c.Export.Lead.AddTo(from))
	result = MaxDate(result, c.List.Lead.AddTo(from))
	return result
}
