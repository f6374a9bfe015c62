package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinicware/vet-reminders/internal/reminder"
)

func newMock(t *testing.T) (pgxmock.PgxPoolIface, *Store) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock, New(mock)
}

func TestReminderTypeLoadsCountsRulesAndTemplates(t *testing.T) {
	mock, store := newMock(t)
	typeID := uuid.New()
	templateID := uuid.New()
	name := "Vaccination Reminder"
	emailText := "Dear {customer}"
	smsText := "{patient} is due"

	mock.ExpectQuery(`SELECT id, name, active, default_count`).
		WithArgs(typeID).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "name", "active", "default_count", "default_units", "cancel_count", "cancel_units",
			"sensitivity_count", "sensitivity_units", "group_by", "groups", "interactive",
		}).AddRow(typeID, "Vaccination", true, 1, "YEARS", 3, "MONTHS", 3, "DAYS", "CUSTOMER", []string{"VACCINATION"}, false))

	mock.ExpectQuery(`SELECT c.count, c.interval_count, c.interval_units`).
		WithArgs(typeID).
		WillReturnRows(pgxmock.NewRows([]string{
			"count", "interval_count", "interval_units", "id", "name", "email_text", "sms_text",
		}).AddRow(0, 1, "MONTHS", &templateID, &name, &emailText, &smsText))

	mock.ExpectQuery(`SELECT count, contact, email, sms, print, export, list, send_to`).
		WithArgs(typeID).
		WillReturnRows(pgxmock.NewRows([]string{
			"count", "contact", "email", "sms", "print", "export", "list", "send_to",
		}).
			AddRow(0, false, true, true, false, false, false, "FIRST").
			AddRow(0, false, false, false, false, false, true, "ANY"))

	got, err := store.ReminderType(context.Background(), typeID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Vaccination", got.Name)
	assert.Equal(t, reminder.Interval{Count: 1, Units: reminder.Years}, got.DefaultInterval)
	assert.Equal(t, reminder.Interval{Count: 3, Units: reminder.Months}, got.CancelInterval)
	assert.Equal(t, reminder.GroupByCustomer, got.GroupBy)
	assert.Equal(t, []string{"VACCINATION"}, got.Groups)

	require.Len(t, got.Counts, 1)
	tier := got.Counts[0]
	assert.Equal(t, reminder.Interval{Count: 1, Units: reminder.Months}, tier.Interval)
	require.NotNil(t, tier.Template)
	assert.Equal(t, templateID, tier.Template.ID)
	assert.True(t, tier.Template.HasEmail())
	assert.True(t, tier.Template.HasSMS())

	require.Len(t, tier.Rules, 2)
	assert.Equal(t, reminder.SendToFirst, tier.Rules[0].SendTo)
	assert.True(t, tier.Rules[0].Email)
	assert.True(t, tier.Rules[1].List)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReminderTypeNotFound(t *testing.T) {
	mock, store := newMock(t)
	typeID := uuid.New()

	mock.ExpectQuery(`SELECT id, name, active, default_count`).
		WithArgs(typeID).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "name", "active", "default_count", "default_units", "cancel_count", "cancel_units",
			"sensitivity_count", "sensitivity_units", "group_by", "groups", "interactive",
		}))

	got, err := store.ReminderType(context.Background(), typeID)
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPatientNotFound(t *testing.T) {
	mock, store := newMock(t)
	id := uuid.New()

	mock.ExpectQuery(`SELECT id, customer_id, name, species, active, deceased, deceased_at`).
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "customer_id", "name", "species", "active", "deceased", "deceased_at",
		}))

	got, err := store.Patient(context.Background(), id)
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOwnerLoadsContacts(t *testing.T) {
	mock, store := newMock(t)
	patientID := uuid.New()
	customerID := uuid.New()
	contactID := uuid.New()

	mock.ExpectQuery(`SELECT c.id, c.name, c.active`).
		WithArgs(patientID).
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "active"}).
			AddRow(customerID, "J Bloggs", true))

	mock.ExpectQuery(`SELECT id, customer_id, kind, value, purposes, preferred, sms`).
		WithArgs([]uuid.UUID{customerID}).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "customer_id", "kind", "value", "purposes", "preferred", "sms",
		}).AddRow(contactID, customerID, "email", "j@example.com", []string{"REMINDER"}, true, false))

	got, err := store.Owner(context.Background(), patientID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, customerID, got.ID)
	require.Len(t, got.Contacts, 1)
	assert.Equal(t, "j@example.com", got.Contacts[0].Value)
	assert.True(t, got.Contacts[0].HasPurpose("REMINDER"))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInProgressRemindersAttachesItems(t *testing.T) {
	mock, store := newMock(t)
	patientID := uuid.New()
	reminderID := uuid.New()
	typeID := uuid.New()
	itemID := uuid.New()
	due := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	created := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`FROM reminders\s+WHERE patient_id = \$1 AND status = 'IN_PROGRESS'`).
		WithArgs(patientID).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "patient_id", "type_id", "product_id", "invoice_item_id", "due_date",
			"first_due_date", "reminder_count", "status", "completed_at", "created_at",
		}).AddRow(reminderID, patientID, typeID, nil, nil, due, due, 0, "IN_PROGRESS", nil, created))

	mock.ExpectQuery(`FROM reminder_items\s+WHERE reminder_id = ANY\(\$1\)`).
		WithArgs([]uuid.UUID{reminderID}).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "reminder_id", "kind", "send_from", "due_date", "count", "status", "error", "created_at",
		}).AddRow(itemID, reminderID, "EMAIL", due, due, 0, "PENDING", "", created))

	got, err := store.InProgressReminders(context.Background(), patientID)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, reminder.StatusInProgress, got[0].Status)
	require.Len(t, got[0].Items, 1)
	assert.Equal(t, reminder.KindEmail, got[0].Items[0].Kind)
	assert.Equal(t, reminder.ItemPending, got[0].Items[0].Status)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDueRemindersUnqueuedGuard(t *testing.T) {
	mock, store := newMock(t)
	reminderID := uuid.New()
	patientID := uuid.New()
	typeID := uuid.New()
	due := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	created := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`FROM reminders r\s+WHERE r\.status = ANY\(\$1\)[\s\S]*NOT EXISTS`).
		WithArgs([]string{"IN_PROGRESS"}, (*time.Time)(nil), (*time.Time)(nil), (*uuid.UUID)(nil), true, 0, 10).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "patient_id", "type_id", "product_id", "invoice_item_id", "due_date",
			"first_due_date", "reminder_count", "status", "completed_at", "created_at",
		}).AddRow(reminderID, patientID, typeID, nil, nil, due, due, 0, "IN_PROGRESS", nil, created))

	mock.ExpectQuery(`FROM reminder_items\s+WHERE reminder_id = ANY\(\$1\)`).
		WithArgs([]uuid.UUID{reminderID}).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "reminder_id", "kind", "send_from", "due_date", "count", "status", "error", "created_at",
		}))

	got, err := store.DueReminders(context.Background(), reminder.DueReminderQuery{Unqueued: true}, 0, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, reminderID, got[0].ID)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveBatchUpsertsReminderAndItems(t *testing.T) {
	mock, store := newMock(t)
	due := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	r := &reminder.Reminder{
		ID:           uuid.New(),
		PatientID:    uuid.New(),
		TypeID:       uuid.New(),
		DueDate:      due,
		FirstDueDate: due,
		Status:       reminder.StatusInProgress,
		CreatedAt:    time.Now(),
	}
	item := &reminder.Item{
		ID:         uuid.New(),
		ReminderID: r.ID,
		Kind:       reminder.KindEmail,
		SendFrom:   due,
		DueDate:    due,
		Status:     reminder.ItemPending,
		CreatedAt:  time.Now(),
	}

	mock.ExpectExec(`INSERT INTO reminders`).
		WithArgs(r.ID, r.PatientID, r.TypeID, r.ProductID, r.InvoiceItemID, r.DueDate,
			r.FirstDueDate, r.ReminderCount, "IN_PROGRESS", r.CompletedAt, r.CreatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`INSERT INTO reminder_items`).
		WithArgs(item.ID, item.ReminderID, "EMAIL", item.SendFrom, item.DueDate,
			item.Count, "PENDING", item.Error, item.CreatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := store.SaveBatch(context.Background(), reminder.Batch{Reminder: r, Items: []*reminder.Item{item}})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveBatchEmptyIsNoOp(t *testing.T) {
	mock, store := newMock(t)
	require.NoError(t, store.SaveBatch(context.Background(), reminder.Batch{}))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDueItemsJoinsPartiesAndContacts(t *testing.T) {
	mock, store := newMock(t)
	itemID := uuid.New()
	reminderID := uuid.New()
	typeID := uuid.New()
	patientID := uuid.New()
	customerID := uuid.New()
	contactID := uuid.New()
	due := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	created := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	sendBy := time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`FROM reminder_items i`).
		WithArgs([]string{"EMAIL"}, &sendBy, 0, 50).
		WillReturnRows(pgxmock.NewRows([]string{
			"i_id", "i_reminder_id", "i_kind", "i_send_from", "i_due_date", "i_count", "i_status", "i_error", "i_created_at",
			"r_id", "r_patient_id", "r_type_id", "r_product_id", "r_invoice_item_id", "r_due_date", "r_first_due_date",
			"r_reminder_count", "r_status", "r_completed_at", "r_created_at",
			"p_id", "p_customer_id", "p_name", "p_species", "p_active", "p_deceased", "p_deceased_at",
			"c_id", "c_name", "c_active",
		}).AddRow(
			itemID, reminderID, "EMAIL", due, due, 0, "PENDING", "", created,
			reminderID, patientID, typeID, nil, nil, due, due, 0, "IN_PROGRESS", nil, created,
			patientID, customerID, "Rex", "Canine", true, false, nil,
			&customerID, ptr("J Bloggs"), ptr(true),
		))

	mock.ExpectQuery(`SELECT id, customer_id, kind, value, purposes, preferred, sms`).
		WithArgs([]uuid.UUID{customerID}).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "customer_id", "kind", "value", "purposes", "preferred", "sms",
		}).AddRow(contactID, customerID, "email", "j@example.com", []string{}, true, false))

	q := reminder.DueItemQuery{Kinds: []reminder.ItemKind{reminder.KindEmail}, SendBy: &sendBy}
	rows, err := store.DueItems(context.Background(), q, 0, 50)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	row := rows[0]
	assert.Equal(t, itemID, row.Item.ID)
	assert.Equal(t, reminder.KindEmail, row.Item.Kind)
	assert.Equal(t, reminderID, row.Reminder.ID)
	assert.Equal(t, "Rex", row.Patient.Name)
	require.NotNil(t, row.Customer)
	assert.Equal(t, customerID, row.Customer.ID)
	require.Len(t, row.Customer.Contacts, 1)
	assert.Equal(t, "j@example.com", row.Customer.Contacts[0].Value)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkItemPendingResetsErroredItem(t *testing.T) {
	mock, store := newMock(t)
	id := uuid.New()

	mock.ExpectExec(`UPDATE reminder_items SET status = 'PENDING'`).
		WithArgs(id).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, store.MarkItemPending(context.Background(), id))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkItemPendingRejectsNonRetryableItem(t *testing.T) {
	mock, store := newMock(t)
	id := uuid.New()

	mock.ExpectExec(`UPDATE reminder_items SET status = 'PENDING'`).
		WithArgs(id).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := store.MarkItemPending(context.Background(), id)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no cancelled or errored item")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveAlertsUpserts(t *testing.T) {
	mock, store := newMock(t)
	now := time.Now()
	a := &reminder.Alert{
		ID:          uuid.New(),
		PatientID:   uuid.New(),
		AlertTypeID: uuid.New(),
		Status:      reminder.StatusCompleted,
		CompletedAt: &now,
		CreatedAt:   now,
	}

	mock.ExpectExec(`INSERT INTO alerts`).
		WithArgs(a.ID, a.PatientID, a.AlertTypeID, "COMPLETED", a.CompletedAt, a.CreatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, store.SaveAlerts(context.Background(), []*reminder.Alert{a}))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func ptr[T any](v T) *T { return &v }
