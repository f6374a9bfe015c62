// Package reminder implements the patient-reminder engine: due/cancel
// evaluation, rule matching against customer contacts, reminder-item
// generation and the cursor-stable iteration used to process large result
// sets that mutate mid-run.
package reminder

import (
	"time"

	"github.com/google/uuid"
)

// Status tracks the lifecycle of a reminder.
type Status string

const (
	StatusInProgress Status = "IN_PROGRESS"
	StatusCompleted  Status = "COMPLETED"
	StatusCancelled  Status = "CANCELLED"
)

// ItemStatus tracks the lifecycle of a reminder item.
type ItemStatus string

const (
	ItemPending   ItemStatus = "PENDING"
	ItemCompleted ItemStatus = "COMPLETED"
	ItemCancelled ItemStatus = "CANCELLED"
	ItemError     ItemStatus = "ERROR"
)

// ItemKind is the outbound channel a reminder item targets.
type ItemKind string

const (
	KindEmail  ItemKind = "EMAIL"
	KindSMS    ItemKind = "SMS"
	KindPrint  ItemKind = "PRINT"
	KindExport ItemKind = "EXPORT"
	KindList   ItemKind = "LIST"
)

// DueState classifies a reminder's urgency relative to a reference date.
type DueState int

const (
	NotDue DueState = iota
	Due
	Overdue
)

func (s DueState) String() string {
	switch s {
	case Due:
		return "DUE"
	case Overdue:
		return "OVERDUE"
	}
	return "NOT_DUE"
}

// Reminder is a scheduled patient-care notification. DueDate moves forward as
// escalation tiers resolve; FirstDueDate records the original schedule.
type Reminder struct {
	ID            uuid.UUID
	PatientID     uuid.UUID
	TypeID        uuid.UUID
	ProductID     *uuid.UUID
	// InvoiceItemID links the reminder to the invoice item that created it,
	// when there is one.
	InvoiceItemID *uuid.UUID
	DueDate       time.Time
	FirstDueDate  time.Time
	ReminderCount int
	Status        Status
	CompletedAt   *time.Time
	CreatedAt     time.Time
	Items         []*Item
}

// Item is one concrete outbound communication attempt for a reminder.
// Immutable once created apart from status transitions.
type Item struct {
	ID         uuid.UUID
	ReminderID uuid.UUID
	Kind       ItemKind
	// SendFrom is the earliest date the item should be sent, offset from the
	// parent's due date by the channel's lead period.
	SendFrom time.Time
	DueDate  time.Time
	// Count snapshots the parent's escalation tier at creation.
	Count     int
	Status    ItemStatus
	Error     string
	CreatedAt time.Time
}

// Outstanding reports whether the item still requires action.
func (i *Item) Outstanding() bool {
	return i.Status == ItemPending || i.Status == ItemError
}
