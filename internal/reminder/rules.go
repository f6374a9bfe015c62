package reminder

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// RulesStore is the persistence surface the housekeeping rules need. Queries
// return reminders and alerts in a stable order so that completion is
// deterministic across runs.
type RulesStore interface {
	// InProgressReminders returns saved IN_PROGRESS reminders for the
	// patient, ordered by id.
	InProgressReminders(ctx context.Context, patientID uuid.UUID) ([]*Reminder, error)

	// InProgressAlerts returns saved IN_PROGRESS alerts for the patient
	// and alert type, ordered by id.
	InProgressAlerts(ctx context.Context, patientID, alertTypeID uuid.UUID) ([]*Alert, error)

	// RemindersForInvoiceItem returns reminders linked to the invoice item,
	// ordered by id.
	RemindersForInvoiceItem(ctx context.Context, invoiceItemID uuid.UUID) ([]*Reminder, error)

	// SaveReminders persists updated reminders.
	SaveReminders(ctx context.Context, reminders []*Reminder) error

	// SaveAlerts persists updated alerts.
	SaveAlerts(ctx context.Context, alerts []*Alert) error
}

// DocumentForm is a patient document form, optionally linked to an invoice
// item. Forms created from an invoice can resolve the reminder that drove
// their creation.
type DocumentForm struct {
	ID            uuid.UUID
	PatientID     uuid.UUID
	InvoiceItemID *uuid.UUID
	Date          time.Time
}

// Rules implements reminder housekeeping: completing superseded reminders,
// advancing reminders after their items resolve, and due date calculation.
type Rules struct {
	store RulesStore
	types *Types
	now   func() time.Time
}

// NewRules returns a Rules backed by the given store and type cache.
func NewRules(store RulesStore, types *Types) *Rules {
	return &Rules{store: store, types: types, now: time.Now}
}

// CalculateDueDate stamps the reminder's due date (and first due date, if
// unset) from its type's default interval, relative to the given start.
func (ru *Rules) CalculateDueDate(ctx context.Context, r *Reminder, start time.Time) error {
	rt, err := ru.types.Get(ctx, r.TypeID)
	if err != nil {
		return fmt.Errorf("reminder: calculate due date: %w", err)
	}
	if rt == nil {
		return fmt.Errorf("reminder: calculate due date: %w", ErrNoReminderType)
	}
	r.DueDate = rt.DueDate(start)
	if r.FirstDueDate.IsZero() {
		r.FirstDueDate = r.DueDate
	}
	return nil
}

// MarkMatchingRemindersCompleted completes persisted IN_PROGRESS reminders
// superseded by r: those for the same patient whose type is the same, or
// whose type shares a group, with r's type. r itself is never completed.
func (ru *Rules) MarkMatchingRemindersCompleted(ctx context.Context, r *Reminder) error {
	if r.Status != StatusInProgress {
		return nil
	}
	rt, err := ru.types.Get(ctx, r.TypeID)
	if err != nil {
		return fmt.Errorf("reminder: mark matching completed: %w", err)
	}
	if rt == nil {
		return fmt.Errorf("reminder: mark matching completed: %w", ErrNoReminderType)
	}
	completed, err := ru.completeSaved(ctx, r, rt)
	if err != nil {
		return err
	}
	if len(completed) > 0 {
		if err := ru.store.SaveReminders(ctx, completed); err != nil {
			return fmt.Errorf("reminder: mark matching completed: %w", err)
		}
	}
	return nil
}

// MarkMatchingRemindersCompletedAll completes superseded reminders for a
// batch of newly created reminders. Entries are processed front to back; each
// entry completes matching later entries still IN_PROGRESS, so duplicates
// created within one transaction cannot all survive, and then completes
// matching saved reminders via the store query. When the batch itself was
// already saved, that query lets a later entry retroactively complete an
// earlier one.
func (ru *Rules) MarkMatchingRemindersCompletedAll(ctx context.Context, reminders []*Reminder) error {
	var completed []*Reminder
	for i, r := range reminders {
		if r.Status != StatusInProgress {
			continue
		}
		rt, err := ru.types.Get(ctx, r.TypeID)
		if err != nil {
			return fmt.Errorf("reminder: mark matching completed: %w", err)
		}
		if rt == nil {
			continue
		}
		for _, later := range reminders[i+1:] {
			if later.Status != StatusInProgress || later.PatientID != r.PatientID {
				continue
			}
			match, err := ru.matchesType(ctx, rt, later.TypeID)
			if err != nil {
				return err
			}
			if match {
				ru.complete(later)
				completed = append(completed, later)
			}
		}
		saved, err := ru.completeSaved(ctx, r, rt)
		if err != nil {
			return err
		}
		completed = append(completed, saved...)
	}
	if len(completed) > 0 {
		if err := ru.store.SaveReminders(ctx, completed); err != nil {
			return fmt.Errorf("reminder: mark matching completed: %w", err)
		}
	}
	return nil
}

// MarkMatchingAlertsCompleted completes persisted IN_PROGRESS alerts with the
// same patient and alert type as a. Alerts have no group matching.
func (ru *Rules) MarkMatchingAlertsCompleted(ctx context.Context, a *Alert) error {
	if a.Status != StatusInProgress {
		return nil
	}
	saved, err := ru.store.InProgressAlerts(ctx, a.PatientID, a.AlertTypeID)
	if err != nil {
		return fmt.Errorf("reminder: mark matching alerts completed: %w", err)
	}
	now := ru.now()
	var completed []*Alert
	for _, candidate := range saved {
		if candidate.ID == a.ID || candidate.Status != StatusInProgress {
			continue
		}
		candidate.Status = StatusCompleted
		end := now
		candidate.CompletedAt = &end
		completed = append(completed, candidate)
	}
	if len(completed) > 0 {
		if err := ru.store.SaveAlerts(ctx, completed); err != nil {
			return fmt.Errorf("reminder: mark matching alerts completed: %w", err)
		}
	}
	return nil
}

// MarkMatchingAlertsCompletedAll applies MarkMatchingAlertsCompleted to a
// batch of alerts, completing matching later batch entries as well.
func (ru *Rules) MarkMatchingAlertsCompletedAll(ctx context.Context, alerts []*Alert) error {
	now := ru.now()
	var completed []*Alert
	for i, a := range alerts {
		if a.Status != StatusInProgress {
			continue
		}
		for _, later := range alerts[i+1:] {
			if later.Status != StatusInProgress {
				continue
			}
			if later.PatientID == a.PatientID && later.AlertTypeID == a.AlertTypeID {
				later.Status = StatusCompleted
				end := now
				later.CompletedAt = &end
				completed = append(completed, later)
			}
		}
		saved, err := ru.store.InProgressAlerts(ctx, a.PatientID, a.AlertTypeID)
		if err != nil {
			return fmt.Errorf("reminder: mark matching alerts completed: %w", err)
		}
		for _, candidate := range saved {
			if candidate.ID == a.ID || candidate.Status != StatusInProgress {
				continue
			}
			candidate.Status = StatusCompleted
			end := now
			candidate.CompletedAt = &end
			completed = append(completed, candidate)
		}
	}
	if len(completed) > 0 {
		if err := ru.store.SaveAlerts(ctx, completed); err != nil {
			return fmt.Errorf("reminder: mark matching alerts completed: %w", err)
		}
	}
	return nil
}

// UpdateReminder advances a reminder after one of its items resolves. The
// reminder count is incremented and the due date advanced via the resolved
// tier's interval, but only when item is the last outstanding item; if any
// other PENDING or ERROR item remains the reminder is left untouched.
// Returns true if the reminder was advanced.
func (ru *Rules) UpdateReminder(ctx context.Context, r *Reminder, item *Item) (bool, error) {
	for _, other := range r.Items {
		if other.ID != item.ID && other.Outstanding() {
			return false, nil
		}
	}
	rt, err := ru.types.Get(ctx, r.TypeID)
	if err != nil {
		return false, fmt.Errorf("reminder: update reminder: %w", err)
	}
	if rt == nil {
		return false, fmt.Errorf("reminder: update reminder: %w", ErrNoReminderType)
	}
	next := rt.NextDueDate(r.DueDate, r.ReminderCount)
	r.ReminderCount++
	if !next.IsZero() {
		r.DueDate = next
	}
	return true, nil
}

// DocumentFormReminder resolves the reminder associated with an invoice-linked
// document form: the reminder whose due date is closest to the form's date.
// Exact date ties break to the lowest reminder id. Returns nil when the form
// has no invoice linkage or no linked reminder exists.
func (ru *Rules) DocumentFormReminder(ctx context.Context, form *DocumentForm) (*Reminder, error) {
	if form.InvoiceItemID == nil {
		return nil, nil
	}
	linked, err := ru.store.RemindersForInvoiceItem(ctx, *form.InvoiceItemID)
	if err != nil {
		return nil, fmt.Errorf("reminder: document form reminder: %w", err)
	}
	var best *Reminder
	var bestDelta time.Duration
	for _, r := range linked {
		delta := form.Date.Sub(r.DueDate)
		if delta < 0 {
			delta = -delta
		}
		switch {
		case best == nil, delta < bestDelta:
			best, bestDelta = r, delta
		case delta == bestDelta && r.ID.String() < best.ID.String():
			best = r
		}
	}
	return best, nil
}

// completeSaved completes persisted IN_PROGRESS reminders superseded by r,
// skipping r itself. The completed reminders are returned unsaved.
func (ru *Rules) completeSaved(ctx context.Context, r *Reminder, rt *Type) ([]*Reminder, error) {
	saved, err := ru.store.InProgressReminders(ctx, r.PatientID)
	if err != nil {
		return nil, fmt.Errorf("reminder: mark matching completed: %w", err)
	}
	var completed []*Reminder
	for _, candidate := range saved {
		if candidate.ID == r.ID || candidate.Status != StatusInProgress {
			continue
		}
		match, err := ru.matchesType(ctx, rt, candidate.TypeID)
		if err != nil {
			return nil, err
		}
		if match {
			ru.complete(candidate)
			completed = append(completed, candidate)
		}
	}
	return completed, nil
}

// matchesType reports whether a reminder of the given type is superseded by
// one of type rt: identical types always match, otherwise the types must
// share a group.
func (ru *Rules) matchesType(ctx context.Context, rt *Type, otherID uuid.UUID) (bool, error) {
	if rt.ID == otherID {
		return true, nil
	}
	other, err := ru.types.Get(ctx, otherID)
	if err != nil {
		return false, fmt.Errorf("reminder: mark matching completed: %w", err)
	}
	if other == nil {
		return false, nil
	}
	return rt.SharesGroup(other), nil
}

func (ru *Rules) complete(r *Reminder) {
	r.Status = StatusCompleted
	end := ru.now()
	r.CompletedAt = &end
	for _, item := range r.Items {
		if item.Status != ItemCompleted {
			item.Status = ItemCancelled
		}
	}
}
