package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/clinicware/vet-reminders/internal/party"
	"github.com/clinicware/vet-reminders/internal/reminder"
)

// InProgressReminders returns saved IN_PROGRESS reminders for a patient with
// items loaded, ordered by id.
func (s *Store) InProgressReminders(ctx context.Context, patientID uuid.UUID) ([]*reminder.Reminder, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, patient_id, type_id, product_id, invoice_item_id, due_date, first_due_date,
		       reminder_count, status, completed_at, created_at
		FROM reminders
		WHERE patient_id = $1 AND status = 'IN_PROGRESS'
		ORDER BY id`, patientID)
	if err != nil {
		return nil, fmt.Errorf("store: in-progress reminders: %w", err)
	}
	defer rows.Close()
	reminders, err := scanReminders(rows)
	if err != nil {
		return nil, err
	}
	if err := s.attachItems(ctx, reminders); err != nil {
		return nil, err
	}
	return reminders, nil
}

// RemindersForInvoiceItem returns reminders linked to an invoice item with
// items loaded, ordered by id.
func (s *Store) RemindersForInvoiceItem(ctx context.Context, invoiceItemID uuid.UUID) ([]*reminder.Reminder, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, patient_id, type_id, product_id, invoice_item_id, due_date, first_due_date,
		       reminder_count, status, completed_at, created_at
		FROM reminders
		WHERE invoice_item_id = $1
		ORDER BY id`, invoiceItemID)
	if err != nil {
		return nil, fmt.Errorf("store: reminders for invoice item: %w", err)
	}
	defer rows.Close()
	reminders, err := scanReminders(rows)
	if err != nil {
		return nil, err
	}
	if err := s.attachItems(ctx, reminders); err != nil {
		return nil, err
	}
	return reminders, nil
}

// DueReminders returns one page of reminders matching the query, with items
// loaded. Ordered by id so paging stays stable while the set mutates.
func (s *Store) DueReminders(ctx context.Context, q reminder.DueReminderQuery, offset, limit int) ([]*reminder.Reminder, error) {
	statuses := q.Statuses
	if len(statuses) == 0 {
		statuses = []reminder.Status{reminder.StatusInProgress}
	}
	text := make([]string, len(statuses))
	for i, st := range statuses {
		text[i] = string(st)
	}
	rows, err := s.db.Query(ctx, `
		SELECT r.id, r.patient_id, r.type_id, r.product_id, r.invoice_item_id, r.due_date, r.first_due_date,
		       r.reminder_count, r.status, r.completed_at, r.created_at
		FROM reminders r
		WHERE r.status = ANY($1)
		  AND ($2::timestamptz IS NULL OR r.due_date >= $2)
		  AND ($3::timestamptz IS NULL OR r.due_date <= $3)
		  AND ($4::uuid IS NULL OR r.type_id = $4)
		  AND ($5 = false OR NOT EXISTS (
			SELECT 1 FROM reminder_items i
			WHERE i.reminder_id = r.id
			  AND i.count = r.reminder_count
			  AND i.status IN ('PENDING', 'ERROR')))
		ORDER BY r.id
		OFFSET $6 LIMIT $7`, text, q.From, q.To, q.TypeID, q.Unqueued, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("store: due reminders: %w", err)
	}
	defer rows.Close()
	reminders, err := scanReminders(rows)
	if err != nil {
		return nil, err
	}
	if err := s.attachItems(ctx, reminders); err != nil {
		return nil, err
	}
	return reminders, nil
}

// DueItems returns one page of pending reminder items joined with their
// reminder, patient and customer. Ordering keeps each (kind, customer) run
// contiguous so groupable items arrive together.
func (s *Store) DueItems(ctx context.Context, q reminder.DueItemQuery, offset, limit int) ([]*reminder.ItemRow, error) {
	kinds := q.Kinds
	if len(kinds) == 0 {
		kinds = []reminder.ItemKind{reminder.KindEmail, reminder.KindSMS, reminder.KindPrint, reminder.KindExport, reminder.KindList}
	}
	text := make([]string, len(kinds))
	for i, k := range kinds {
		text[i] = string(k)
	}
	rows, err := s.db.Query(ctx, `
		SELECT i.id, i.reminder_id, i.kind, i.send_from, i.due_date, i.count, i.status, i.error, i.created_at,
		       r.id, r.patient_id, r.type_id, r.product_id, r.invoice_item_id, r.due_date, r.first_due_date,
		       r.reminder_count, r.status, r.completed_at, r.created_at,
		       p.id, p.customer_id, p.name, p.species, p.active, p.deceased, p.deceased_at,
		       c.id, c.name, c.active
		FROM reminder_items i
		JOIN reminders r ON r.id = i.reminder_id
		JOIN patients p ON p.id = r.patient_id
		LEFT JOIN customers c ON c.id = p.customer_id
		WHERE i.status = 'PENDING'
		  AND i.kind = ANY($1)
		  AND ($2::timestamptz IS NULL OR i.send_from <= $2)
		ORDER BY i.kind, c.id, p.id, i.send_from, i.id
		OFFSET $3 LIMIT $4`, text, q.SendBy, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("store: due items: %w", err)
	}
	defer rows.Close()

	var out []*reminder.ItemRow
	for rows.Next() {
		var (
			row          reminder.ItemRow
			item         reminder.Item
			rem          reminder.Reminder
			patient      party.Patient
			itemKind     string
			remStatus    string
			itemStatus   string
			custID       *uuid.UUID
			custName     *string
			custActive   *bool
		)
		if err := rows.Scan(
			&item.ID, &item.ReminderID, &itemKind, &item.SendFrom, &item.DueDate, &item.Count, &itemStatus, &item.Error, &item.CreatedAt,
			&rem.ID, &rem.PatientID, &rem.TypeID, &rem.ProductID, &rem.InvoiceItemID, &rem.DueDate, &rem.FirstDueDate,
			&rem.ReminderCount, &remStatus, &rem.CompletedAt, &rem.CreatedAt,
			&patient.ID, &patient.CustomerID, &patient.Name, &patient.Species, &patient.Active, &patient.Deceased, &patient.DeceasedAt,
			&custID, &custName, &custActive,
		); err != nil {
			return nil, fmt.Errorf("store: scan due item: %w", err)
		}
		item.Kind = reminder.ItemKind(itemKind)
		item.Status = reminder.ItemStatus(itemStatus)
		rem.Status = reminder.Status(remStatus)
		row.Item = &item
		row.Reminder = &rem
		row.Patient = &patient
		if custID != nil {
			customer := party.Customer{ID: *custID}
			if custName != nil {
				customer.Name = *custName
			}
			if custActive != nil {
				customer.Active = *custActive
			}
			row.Customer = &customer
		}
		out = append(out, &row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: due items: %w", err)
	}
	if err := s.attachCustomerContacts(ctx, out); err != nil {
		return nil, err
	}
	return out, nil
}

// SaveReminders upserts reminders and their items.
func (s *Store) SaveReminders(ctx context.Context, reminders []*reminder.Reminder) error {
	for _, r := range reminders {
		if err := s.saveReminder(ctx, r); err != nil {
			return err
		}
		if err := s.SaveItems(ctx, r.Items); err != nil {
			return err
		}
	}
	return nil
}

// SaveBatch persists one processor batch: the evaluated reminder plus its new
// or status-changed items.
func (s *Store) SaveBatch(ctx context.Context, b reminder.Batch) error {
	if b.Empty() {
		return nil
	}
	if b.Reminder != nil {
		if err := s.saveReminder(ctx, b.Reminder); err != nil {
			return err
		}
	}
	return s.SaveItems(ctx, b.Items)
}

func (s *Store) saveReminder(ctx context.Context, r *reminder.Reminder) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO reminders (id, patient_id, type_id, product_id, invoice_item_id, due_date, first_due_date, reminder_count, status, completed_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			due_date = EXCLUDED.due_date,
			first_due_date = EXCLUDED.first_due_date,
			reminder_count = EXCLUDED.reminder_count,
			status = EXCLUDED.status,
			completed_at = EXCLUDED.completed_at`,
		r.ID, r.PatientID, r.TypeID, r.ProductID, r.InvoiceItemID, r.DueDate, r.FirstDueDate,
		r.ReminderCount, string(r.Status), r.CompletedAt, r.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("store: save reminder: %w", err)
	}
	return nil
}

// SaveItems upserts reminder items. Only status and error change after
// creation.
func (s *Store) SaveItems(ctx context.Context, items []*reminder.Item) error {
	for _, item := range items {
		if item.ID == uuid.Nil {
			item.ID = uuid.New()
		}
		if item.CreatedAt.IsZero() {
			item.CreatedAt = time.Now().UTC()
		}
		_, err := s.db.Exec(ctx, `
			INSERT INTO reminder_items (id, reminder_id, kind, send_from, due_date, count, status, error, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			ON CONFLICT (id) DO UPDATE SET
				status = EXCLUDED.status,
				error = EXCLUDED.error`,
			item.ID, item.ReminderID, string(item.Kind), item.SendFrom, item.DueDate,
			item.Count, string(item.Status), item.Error, item.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("store: save reminder item: %w", err)
		}
	}
	return nil
}

// MarkItemPending requeues a cancelled or errored item for sending.
func (s *Store) MarkItemPending(ctx context.Context, id uuid.UUID) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE reminder_items SET status = 'PENDING', error = ''
		WHERE id = $1 AND status IN ('CANCELLED', 'ERROR')`, id)
	if err != nil {
		return fmt.Errorf("store: mark item pending: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("store: mark item pending: no cancelled or errored item with id %s", id)
	}
	return nil
}

// ItemCounts returns the number of reminder items per kind and status.
func (s *Store) ItemCounts(ctx context.Context) (map[reminder.ItemKind]map[reminder.ItemStatus]int, error) {
	rows, err := s.db.Query(ctx, `
		SELECT kind, status, COUNT(*)
		FROM reminder_items
		GROUP BY kind, status`)
	if err != nil {
		return nil, fmt.Errorf("store: item counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[reminder.ItemKind]map[reminder.ItemStatus]int)
	for rows.Next() {
		var (
			kind   string
			status string
			n      int
		)
		if err := rows.Scan(&kind, &status, &n); err != nil {
			return nil, fmt.Errorf("store: scan item count: %w", err)
		}
		k := reminder.ItemKind(kind)
		if counts[k] == nil {
			counts[k] = make(map[reminder.ItemStatus]int)
		}
		counts[k][reminder.ItemStatus(status)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: item counts: %w", err)
	}
	return counts, nil
}

func scanReminders(rows pgx.Rows) ([]*reminder.Reminder, error) {
	var out []*reminder.Reminder
	for rows.Next() {
		var (
			r      reminder.Reminder
			status string
		)
		if err := rows.Scan(
			&r.ID, &r.PatientID, &r.TypeID, &r.ProductID, &r.InvoiceItemID, &r.DueDate,
			&r.FirstDueDate, &r.ReminderCount, &status, &r.CompletedAt, &r.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("store: scan reminder: %w", err)
		}
		r.Status = reminder.Status(status)
		out = append(out, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: scan reminders: %w", err)
	}
	return out, nil
}

// attachItems batch-loads items for a set of reminders.
func (s *Store) attachItems(ctx context.Context, reminders []*reminder.Reminder) error {
	if len(reminders) == 0 {
		return nil
	}
	ids := make([]uuid.UUID, len(reminders))
	byID := make(map[uuid.UUID]*reminder.Reminder, len(reminders))
	for i, r := range reminders {
		ids[i] = r.ID
		byID[r.ID] = r
		r.Items = nil
	}
	rows, err := s.db.Query(ctx, `
		SELECT id, reminder_id, kind, send_from, due_date, count, status, error, created_at
		FROM reminder_items
		WHERE reminder_id = ANY($1)
		ORDER BY reminder_id, id`, ids)
	if err != nil {
		return fmt.Errorf("store: load reminder items: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			item   reminder.Item
			kind   string
			status string
		)
		if err := rows.Scan(&item.ID, &item.ReminderID, &kind, &item.SendFrom, &item.DueDate, &item.Count, &status, &item.Error, &item.CreatedAt); err != nil {
			return fmt.Errorf("store: scan reminder item: %w", err)
		}
		item.Kind = reminder.ItemKind(kind)
		item.Status = reminder.ItemStatus(status)
		if r, ok := byID[item.ReminderID]; ok {
			r.Items = append(r.Items, &item)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("store: load reminder items: %w", err)
	}
	return nil
}

// attachCustomerContacts batch-loads contacts for the customers in a page of
// item rows.
func (s *Store) attachCustomerContacts(ctx context.Context, rows []*reminder.ItemRow) error {
	var ids []uuid.UUID
	seen := make(map[uuid.UUID]bool)
	for _, row := range rows {
		if row.Customer != nil && !seen[row.Customer.ID] {
			seen[row.Customer.ID] = true
			ids = append(ids, row.Customer.ID)
		}
	}
	contacts, err := s.contacts(ctx, ids)
	if err != nil {
		return err
	}
	for _, row := range rows {
		if row.Customer != nil {
			row.Customer.Contacts = contacts[row.Customer.ID]
		}
	}
	return nil
}
