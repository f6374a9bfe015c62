// Package memory provides an in-memory reminder store for development mode
// and tests. It implements the same query surface as the Postgres store.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/clinicware/vet-reminders/internal/party"
	"github.com/clinicware/vet-reminders/internal/reminder"
)

// Store holds all records in process memory. Safe for concurrent use.
type Store struct {
	mu        sync.RWMutex
	types     map[uuid.UUID]*reminder.Type
	patients  map[uuid.UUID]*party.Patient
	customers map[uuid.UUID]*party.Customer
	reminders map[uuid.UUID]*reminder.Reminder
	alerts    map[uuid.UUID]*reminder.Alert
}

// New creates an empty store.
func New() *Store {
	return &Store{
		types:     make(map[uuid.UUID]*reminder.Type),
		patients:  make(map[uuid.UUID]*party.Patient),
		customers: make(map[uuid.UUID]*party.Customer),
		reminders: make(map[uuid.UUID]*reminder.Reminder),
		alerts:    make(map[uuid.UUID]*reminder.Alert),
	}
}

// PutType registers a reminder-type definition.
func (s *Store) PutType(t *reminder.Type) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.types[t.ID] = t
}

// PutPatient registers a patient.
func (s *Store) PutPatient(p *party.Patient) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.patients[p.ID] = p
}

// PutCustomer registers a customer.
func (s *Store) PutCustomer(c *party.Customer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.customers[c.ID] = c
}

// ReminderType returns the type with the given ID, or nil.
func (s *Store) ReminderType(ctx context.Context, id uuid.UUID) (*reminder.Type, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.types[id], nil
}

// Patient returns the patient with the given ID, or nil.
func (s *Store) Patient(ctx context.Context, id uuid.UUID) (*party.Patient, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.patients[id], nil
}

// Owner returns the customer owning a patient, or nil.
func (s *Store) Owner(ctx context.Context, patientID uuid.UUID) (*party.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p := s.patients[patientID]
	if p == nil {
		return nil, nil
	}
	return s.customers[p.CustomerID], nil
}

// InProgressReminders returns IN_PROGRESS reminders for a patient, ordered by
// id.
func (s *Store) InProgressReminders(ctx context.Context, patientID uuid.UUID) ([]*reminder.Reminder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*reminder.Reminder
	for _, r := range s.reminders {
		if r.PatientID == patientID && r.Status == reminder.StatusInProgress {
			out = append(out, r)
		}
	}
	sortRemindersByID(out)
	return out, nil
}

// RemindersForInvoiceItem returns reminders linked to an invoice item,
// ordered by id.
func (s *Store) RemindersForInvoiceItem(ctx context.Context, invoiceItemID uuid.UUID) ([]*reminder.Reminder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*reminder.Reminder
	for _, r := range s.reminders {
		if r.InvoiceItemID != nil && *r.InvoiceItemID == invoiceItemID {
			out = append(out, r)
		}
	}
	sortRemindersByID(out)
	return out, nil
}

// InProgressAlerts returns IN_PROGRESS alerts for a patient and alert type,
// ordered by id.
func (s *Store) InProgressAlerts(ctx context.Context, patientID, alertTypeID uuid.UUID) ([]*reminder.Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*reminder.Alert
	for _, a := range s.alerts {
		if a.PatientID == patientID && a.AlertTypeID == alertTypeID && a.Status == reminder.StatusInProgress {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.String() < out[j].ID.String() })
	return out, nil
}

// SaveReminders stores reminders, assigning IDs where missing.
func (s *Store) SaveReminders(ctx context.Context, reminders []*reminder.Reminder) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range reminders {
		s.save(r)
	}
	return nil
}

// SaveAlerts stores alerts, assigning IDs where missing.
func (s *Store) SaveAlerts(ctx context.Context, alerts []*reminder.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range alerts {
		if a.ID == uuid.Nil {
			a.ID = uuid.New()
		}
		if a.CreatedAt.IsZero() {
			a.CreatedAt = time.Now().UTC()
		}
		s.alerts[a.ID] = a
	}
	return nil
}

// SaveBatch persists one processor batch.
func (s *Store) SaveBatch(ctx context.Context, b reminder.Batch) error {
	if b.Reminder == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.save(b.Reminder)
	return nil
}

// SaveItems is a no-op beyond ID assignment: items live on their reminder.
func (s *Store) SaveItems(ctx context.Context, items []*reminder.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, item := range items {
		if item.ID == uuid.Nil {
			item.ID = uuid.New()
		}
	}
	return nil
}

func (s *Store) save(r *reminder.Reminder) {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	for _, item := range r.Items {
		if item.ID == uuid.Nil {
			item.ID = uuid.New()
		}
		if item.ReminderID == uuid.Nil {
			item.ReminderID = r.ID
		}
	}
	s.reminders[r.ID] = r
}

// DueReminders returns one page of reminders matching the query, ordered by
// id.
func (s *Store) DueReminders(ctx context.Context, q reminder.DueReminderQuery, offset, limit int) ([]*reminder.Reminder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	statuses := q.Statuses
	if len(statuses) == 0 {
		statuses = []reminder.Status{reminder.StatusInProgress}
	}
	var all []*reminder.Reminder
	for _, r := range s.reminders {
		if !statusIn(r.Status, statuses) {
			continue
		}
		if q.TypeID != nil && r.TypeID != *q.TypeID {
			continue
		}
		if q.From != nil && r.DueDate.Before(*q.From) {
			continue
		}
		if q.To != nil && r.DueDate.After(*q.To) {
			continue
		}
		if q.Unqueued && queuedAtCount(r) {
			continue
		}
		all = append(all, r)
	}
	sortRemindersByID(all)
	return page(all, offset, limit), nil
}

// DueItems returns one page of pending items joined with their reminder,
// type, patient and customer. Ordered by kind then customer then patient so
// groupable items arrive together.
func (s *Store) DueItems(ctx context.Context, q reminder.DueItemQuery, offset, limit int) ([]*reminder.ItemRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	kinds := q.Kinds
	var all []*reminder.ItemRow
	for _, r := range s.reminders {
		for _, item := range r.Items {
			if item.Status != reminder.ItemPending {
				continue
			}
			if len(kinds) > 0 && !kindIn(item.Kind, kinds) {
				continue
			}
			if q.SendBy != nil && item.SendFrom.After(*q.SendBy) {
				continue
			}
			row := &reminder.ItemRow{
				Item:         item,
				Reminder:     r,
				ReminderType: s.types[r.TypeID],
				Patient:      s.patients[r.PatientID],
			}
			if row.Patient != nil {
				row.Customer = s.customers[row.Patient.CustomerID]
			}
			all = append(all, row)
		}
	}
	sort.Slice(all, func(i, j int) bool {
		a, b := all[i], all[j]
		if a.Item.Kind != b.Item.Kind {
			return a.Item.Kind < b.Item.Kind
		}
		ca, cb := customerKey(a), customerKey(b)
		if ca != cb {
			return ca < cb
		}
		if a.Patient != nil && b.Patient != nil && a.Patient.ID != b.Patient.ID {
			return a.Patient.ID.String() < b.Patient.ID.String()
		}
		if !a.Item.SendFrom.Equal(b.Item.SendFrom) {
			return a.Item.SendFrom.Before(b.Item.SendFrom)
		}
		return a.Item.ID.String() < b.Item.ID.String()
	})
	return page(all, offset, limit), nil
}

// MarkItemPending requeues a cancelled or errored item for sending.
func (s *Store) MarkItemPending(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.reminders {
		for _, item := range r.Items {
			if item.ID != id {
				continue
			}
			if item.Status != reminder.ItemCancelled && item.Status != reminder.ItemError {
				return fmt.Errorf("store: mark item pending: item %s is %s", id, item.Status)
			}
			item.Status = reminder.ItemPending
			item.Error = ""
			return nil
		}
	}
	return fmt.Errorf("store: mark item pending: no item with id %s", id)
}

// ItemCounts returns the number of items per kind and status.
func (s *Store) ItemCounts(ctx context.Context) (map[reminder.ItemKind]map[reminder.ItemStatus]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := make(map[reminder.ItemKind]map[reminder.ItemStatus]int)
	for _, r := range s.reminders {
		for _, item := range r.Items {
			if counts[item.Kind] == nil {
				counts[item.Kind] = make(map[reminder.ItemStatus]int)
			}
			counts[item.Kind][item.Status]++
		}
	}
	return counts, nil
}

// queuedAtCount reports whether the reminder already has a pending or errored
// item at its current count.
func queuedAtCount(r *reminder.Reminder) bool {
	for _, item := range r.Items {
		if item.Count != r.ReminderCount {
			continue
		}
		if item.Status == reminder.ItemPending || item.Status == reminder.ItemError {
			return true
		}
	}
	return false
}

func customerKey(row *reminder.ItemRow) string {
	if row.Customer == nil {
		return ""
	}
	return row.Customer.ID.String()
}

func sortRemindersByID(reminders []*reminder.Reminder) {
	sort.Slice(reminders, func(i, j int) bool {
		return reminders[i].ID.String() < reminders[j].ID.String()
	})
}

func statusIn(status reminder.Status, statuses []reminder.Status) bool {
	for _, s := range statuses {
		if s == status {
			return true
		}
	}
	return false
}

func kindIn(kind reminder.ItemKind, kinds []reminder.ItemKind) bool {
	for _, k := range kinds {
		if k == kind {
			return true
		}
	}
	return false
}

func page[T any](all []T, offset, limit int) []T {
	if offset >= len(all) {
		return nil
	}
	end := offset + limit
	if limit <= 0 || end > len(all) {
		end = len(all)
	}
	return all[offset:end]
}
