package reminder

import (
	"time"

	"github.com/google/uuid"
)

// GroupBy is a reminder type's preference for batching its items with other
// reminders when they are sent.
type GroupBy string

const (
	GroupByNone     GroupBy = "NONE"
	GroupByCustomer GroupBy = "CUSTOMER"
	GroupByPatient  GroupBy = "PATIENT"
)

// SendTo governs how many of a rule's channels must match before the rule is
// satisfied, and how many items a satisfied rule produces.
type SendTo string

const (
	// SendToAll requires every requested channel to have a contact, and
	// produces an item per channel. Export and list are exempt from the
	// all-channels requirement; they are enrichments, not requirements.
	SendToAll SendTo = "ALL"
	// SendToFirst produces a single item for the first available channel in
	// email > SMS > print precedence.
	SendToFirst SendTo = "FIRST"
	// SendToAny matches when any requested channel has a contact, and
	// produces an item per channel that does.
	SendToAny SendTo = "ANY"
)

// Template is the document template attached to a tier. Which bodies it
// defines determines which channels the tier can use.
type Template struct {
	ID        uuid.UUID
	Name      string
	EmailText string
	SMSText   string
}

// HasEmail reports whether the template defines an email body.
func (t *Template) HasEmail() bool { return t != nil && t.EmailText != "" }

// HasSMS reports whether the template defines an SMS body.
func (t *Template) HasSMS() bool { return t != nil && t.SMSText != "" }

// Rule is one entry of a tier's ordered rule list: a set of channel capability
// flags plus the SendTo policy. The first rule of a tier whose policy is
// satisfied by the customer's contacts wins.
type Rule struct {
	// Contact pulls every contact tagged with the REMINDER purpose rather
	// than the single best contact per channel.
	Contact bool
	Email   bool
	SMS     bool
	Print   bool
	Export  bool
	List    bool
	SendTo  SendTo
}

// Count is one escalation tier of a reminder type.
type Count struct {
	// Count is the 0-based tier index.
	Count int
	// Interval is the overdue interval used to compute the next due date once
	// this tier resolves.
	Interval Interval
	Rules    []Rule
	Template *Template
}

// NextDueDate returns dueDate advanced by this tier's overdue interval.
func (c *Count) NextDueDate(dueDate time.Time) time.Time {
	return c.Interval.AddTo(dueDate)
}

// Type is an immutable snapshot of a reminder-type definition.
type Type struct {
	ID              uuid.UUID
	Name            string
	Active          bool
	DefaultInterval Interval
	CancelInterval  Interval
	// Sensitivity is the half-width of the symmetric window used to classify
	// a due date as DUE rather than OVERDUE or NOT_DUE.
	Sensitivity Interval
	GroupBy     GroupBy
	// Groups are classification tags; in-progress reminders sharing a tag are
	// superseded when a new reminder is created.
	Groups      []string
	Interactive bool
	// Counts are the escalation tiers, sorted ascending by tier index.
	Counts []Count
}

// DueDate returns the initial due date for a reminder starting at start.
func (t *Type) DueDate(start time.Time) time.Time {
	return t.DefaultInterval.AddTo(start)
}

// CancelDate returns the date on which a reminder with the given due date
// should be cancelled.
func (t *Type) CancelDate(dueDate time.Time) time.Time {
	return t.CancelInterval.AddTo(dueDate)
}

// ShouldCancel reports whether a reminder due on dueDate should be cancelled
// as at the given date. The boundary is inclusive: cancellation starts the
// moment the cancel date arrives. Comparison is date-only.
func (t *Type) ShouldCancel(dueDate, asOf time.Time) bool {
	return !DateOf(t.CancelDate(dueDate)).After(DateOf(asOf))
}

// DueState classifies dueDate against the sensitivity window centred on asOf.
// Dates on the window boundaries classify as DUE. Comparison is date-only.
func (t *Type) DueState(dueDate, asOf time.Time) DueState {
	due := DateOf(dueDate)
	from := DateOf(t.Sensitivity.SubtractFrom(asOf))
	to := DateOf(t.Sensitivity.AddTo(asOf))
	switch {
	case due.Before(from):
		return Overdue
	case !due.After(to):
		return Due
	default:
		return NotDue
	}
}

// ReminderCount returns the tier with the given index, or nil if the type
// defines no configuration for that escalation level.
func (t *Type) ReminderCount(count int) *Count {
	for i := range t.Counts {
		if t.Counts[i].Count == count {
			return &t.Counts[i]
		}
	}
	return nil
}

// NextDueDate returns the due date following dueDate for the given tier, or
// the zero time if the tier is absent (no further escalation).
func (t *Type) NextDueDate(dueDate time.Time, count int) time.Time {
	c := t.ReminderCount(count)
	if c == nil {
		return time.Time{}
	}
	return c.NextDueDate(dueDate)
}

// IsDue reports whether a reminder on the given tier falls due within
// [from, to]. A nil bound is open. Comparison is date-only; the next due date
// is used when the tier defines one.
func (t *Type) IsDue(dueDate time.Time, count int, from, to *time.Time) bool {
	next := dueDate
	if c := t.ReminderCount(count); c != nil {
		next = c.NextDueDate(dueDate)
	}
	next = DateOf(next)
	if from != nil && next.Before(DateOf(*from)) {
		return false
	}
	if to != nil && next.After(DateOf(*to)) {
		return false
	}
	return true
}

// SharesGroup reports whether two types share a classification group tag.
func (t *Type) SharesGroup(other *Type) bool {
	for _, g := range t.Groups {
		for _, o := range other.Groups {
			if g == o {
				return true
			}
		}
	}
	return false
}

// GroupingPolicy controls which item kinds may be grouped when reminder types
// request customer or patient grouping. Export and list items are never
// grouped regardless of policy.
type GroupingPolicy struct {
	Email bool `json:"email"`
	SMS   bool `json:"sms"`
	Print bool `json:"print"`
}

// GroupAll permits grouping for every groupable kind.
var GroupAll = GroupingPolicy{Email: true, SMS: true, Print: true}

// GroupNone disables grouping entirely.
var GroupNone = GroupingPolicy{}

// Groups reports whether items of the given kind may be grouped.
func (p GroupingPolicy) Groups(kind ItemKind) bool {
	switch kind {
	case KindEmail:
		return p.Email
	case KindSMS:
		return p.SMS
	case KindPrint:
		return p.Print
	}
	return false
}
