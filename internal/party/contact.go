package party

import (
	"sort"

	"github.com/google/uuid"
)

// ContactKind identifies the transport a contact supports.
type ContactKind string

const (
	ContactEmail    ContactKind = "email"
	ContactPhone    ContactKind = "phone"
	ContactLocation ContactKind = "location"
)

// PurposeReminder marks a contact as the customer's nominated reminder contact.
const PurposeReminder = "REMINDER"

// Contact is a single way of reaching a customer.
type Contact struct {
	ID         uuid.UUID
	CustomerID uuid.UUID
	Kind       ContactKind
	// Value is the address, phone number or postal location text.
	Value     string
	Purposes  []string
	Preferred bool
	// SMS indicates a phone contact can receive text messages.
	SMS bool
}

// HasPurpose reports whether the contact carries the given purpose tag.
func (c Contact) HasPurpose(purpose string) bool {
	for _, p := range c.Purposes {
		if p == purpose {
			return true
		}
	}
	return false
}

// Matcher selects contacts. Implementations report whether a contact is
// acceptable at all; ranking between acceptable contacts is handled by Find.
type Matcher func(Contact) bool

// KindMatcher accepts contacts of the given kind.
func KindMatcher(kind ContactKind) Matcher {
	return func(c Contact) bool { return c.Kind == kind }
}

// PurposeMatcher accepts contacts of the given kind. If exact is true, the
// contact must also carry the purpose tag.
func PurposeMatcher(kind ContactKind, purpose string, exact bool) Matcher {
	return func(c Contact) bool {
		if c.Kind != kind {
			return false
		}
		return !exact || c.HasPurpose(purpose)
	}
}

// SMSMatcher accepts SMS-capable phone contacts. If exact is true, the contact
// must also carry the purpose tag.
func SMSMatcher(purpose string, exact bool) Matcher {
	return func(c Contact) bool {
		if c.Kind != ContactPhone || !c.SMS {
			return false
		}
		return !exact || c.HasPurpose(purpose)
	}
}

// SortContacts returns the contacts in preference order: those tagged with the
// REMINDER purpose first, then preferred contacts, then the rest, with ID as
// the tie-break so ordering is stable across runs.
func SortContacts(contacts []Contact) []Contact {
	sorted := make([]Contact, len(contacts))
	copy(sorted, contacts)
	rank := func(c Contact) int {
		switch {
		case c.HasPurpose(PurposeReminder):
			return 0
		case c.Preferred:
			return 1
		default:
			return 2
		}
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		ri, rj := rank(sorted[i]), rank(sorted[j])
		if ri != rj {
			return ri < rj
		}
		return sorted[i].ID.String() < sorted[j].ID.String()
	})
	return sorted
}

// Find returns the best contact accepted by the matcher, or nil. The input is
// assumed preference-ordered (see SortContacts); the first acceptable contact
// wins.
func Find(contacts []Contact, matcher Matcher) *Contact {
	for i := range contacts {
		if matcher(contacts[i]) {
			return &contacts[i]
		}
	}
	return nil
}

// FindAll returns every contact accepted by the matcher, in input order.
func FindAll(contacts []Contact, matcher Matcher) []Contact {
	var matches []Contact
	for _, c := range contacts {
		if matcher(c) {
			matches = append(matches, c)
		}
	}
	return matches
}
