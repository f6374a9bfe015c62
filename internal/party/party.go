// Package party holds the customer, patient and contact entities consumed by
// the reminder engine. Contacts are read-only here; they are maintained by the
// wider practice-management application.
package party

import (
	"time"

	"github.com/google/uuid"
)

// Customer owns patients and carries the contacts reminders are sent to.
type Customer struct {
	ID       uuid.UUID
	Name     string
	Active   bool
	Contacts []Contact
}

// Patient is the animal a reminder is scheduled for.
type Patient struct {
	ID         uuid.UUID
	CustomerID uuid.UUID
	Name       string
	Species    string
	Active     bool
	Deceased   bool
	DeceasedAt *time.Time
}
