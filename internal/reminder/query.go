package reminder

import (
	"time"

	"github.com/google/uuid"

	"github.com/clinicware/vet-reminders/internal/party"
)

// DueReminderQuery selects reminders falling due within a window. A nil From
// or To leaves that side of the window open. The zero value selects all
// IN_PROGRESS reminders.
type DueReminderQuery struct {
	From     *time.Time
	To       *time.Time
	TypeID   *uuid.UUID
	Statuses []Status
	// Unqueued excludes reminders that already have a pending or errored
	// item at their current reminder count. Evaluation sets this so a
	// reminder leaves the result set once its items are queued and only
	// returns after the count advances.
	Unqueued bool
	PageSize int
}

// DueItemQuery selects reminder items pending dispatch: PENDING items whose
// send-from date has arrived, optionally restricted by kind.
type DueItemQuery struct {
	Kinds    []ItemKind
	SendBy   *time.Time
	PageSize int
}

// ItemRow is one reminder item joined with the records the dispatch and
// grouping passes need: its parent reminder and the resolved patient and
// customer.
type ItemRow struct {
	Item         *Item
	Reminder     *Reminder
	ReminderType *Type
	Patient      *party.Patient
	Customer     *party.Customer
}
