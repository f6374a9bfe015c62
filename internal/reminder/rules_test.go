package reminder

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRulesStore struct {
	reminders []*Reminder
	alerts    []*Alert
	byInvoice map[uuid.UUID][]*Reminder

	reminderSaves int
	alertSaves    int
}

func (s *fakeRulesStore) InProgressReminders(_ context.Context, patientID uuid.UUID) ([]*Reminder, error) {
	var out []*Reminder
	for _, r := range s.reminders {
		if r.PatientID == patientID && r.Status == StatusInProgress {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *fakeRulesStore) InProgressAlerts(_ context.Context, patientID, alertTypeID uuid.UUID) ([]*Alert, error) {
	var out []*Alert
	for _, a := range s.alerts {
		if a.PatientID == patientID && a.AlertTypeID == alertTypeID && a.Status == StatusInProgress {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *fakeRulesStore) RemindersForInvoiceItem(_ context.Context, invoiceItemID uuid.UUID) ([]*Reminder, error) {
	return s.byInvoice[invoiceItemID], nil
}

func (s *fakeRulesStore) SaveReminders(_ context.Context, _ []*Reminder) error {
	s.reminderSaves++
	return nil
}

func (s *fakeRulesStore) SaveAlerts(_ context.Context, _ []*Alert) error {
	s.alertSaves++
	return nil
}

func newReminder(patientID uuid.UUID, rt *Type) *Reminder {
	return &Reminder{
		ID:        uuid.New(),
		PatientID: patientID,
		TypeID:    rt.ID,
		DueDate:   date(2024, time.June, 1),
		Status:    StatusInProgress,
	}
}

func rulesUnderTest(store *fakeRulesStore, types ...*Type) *Rules {
	src := fakeTypes{}
	for _, rt := range types {
		src[rt.ID] = rt
	}
	return NewRules(store, NewTypes(src))
}

func TestMarkMatchingRemindersCompleted(t *testing.T) {
	rt := vaccinationType(months(6), []Rule{{List: true}})
	patient := uuid.New()
	saved := newReminder(patient, rt)
	saved.Items = []*Item{{ID: uuid.New(), ReminderID: saved.ID, Kind: KindEmail, Status: ItemPending}}
	otherPatient := newReminder(uuid.New(), rt)
	store := &fakeRulesStore{reminders: []*Reminder{saved, otherPatient}}
	ru := rulesUnderTest(store, rt)

	incoming := newReminder(patient, rt)
	require.NoError(t, ru.MarkMatchingRemindersCompleted(context.Background(), incoming))

	assert.Equal(t, StatusCompleted, saved.Status)
	require.NotNil(t, saved.CompletedAt)
	assert.Equal(t, ItemCancelled, saved.Items[0].Status)
	assert.Equal(t, StatusInProgress, otherPatient.Status)
	assert.Equal(t, StatusInProgress, incoming.Status)
	assert.Equal(t, 1, store.reminderSaves)
}

func TestMarkMatchingRemindersCompletedByGroup(t *testing.T) {
	a := vaccinationType(months(6), []Rule{{List: true}})
	a.Groups = []string{"VACCINATION"}
	b := vaccinationType(months(6), []Rule{{List: true}})
	b.Groups = []string{"VACCINATION", "ANNUAL"}
	c := vaccinationType(months(6), []Rule{{List: true}})
	c.Groups = []string{"DENTAL"}

	patient := uuid.New()
	sameGroup := newReminder(patient, b)
	unrelated := newReminder(patient, c)
	store := &fakeRulesStore{reminders: []*Reminder{sameGroup, unrelated}}
	ru := rulesUnderTest(store, a, b, c)

	incoming := newReminder(patient, a)
	require.NoError(t, ru.MarkMatchingRemindersCompleted(context.Background(), incoming))

	assert.Equal(t, StatusCompleted, sameGroup.Status)
	assert.Equal(t, StatusInProgress, unrelated.Status)
}

func TestMarkMatchingRemindersCompletedIdempotent(t *testing.T) {
	rt := vaccinationType(months(6), []Rule{{List: true}})
	patient := uuid.New()
	saved := newReminder(patient, rt)
	store := &fakeRulesStore{reminders: []*Reminder{saved}}
	ru := rulesUnderTest(store, rt)

	incoming := newReminder(patient, rt)
	require.NoError(t, ru.MarkMatchingRemindersCompleted(context.Background(), incoming))
	assert.Equal(t, 1, store.reminderSaves)

	// The second pass finds nothing IN_PROGRESS and saves nothing.
	require.NoError(t, ru.MarkMatchingRemindersCompleted(context.Background(), incoming))
	assert.Equal(t, 1, store.reminderSaves)
}

func TestMarkMatchingRemindersCompletedAllInBatch(t *testing.T) {
	rt := vaccinationType(months(6), []Rule{{List: true}})
	patient := uuid.New()
	first := newReminder(patient, rt)
	second := newReminder(patient, rt)
	third := newReminder(uuid.New(), rt)
	store := &fakeRulesStore{}
	ru := rulesUnderTest(store, rt)

	require.NoError(t, ru.MarkMatchingRemindersCompletedAll(context.Background(), []*Reminder{first, second, third}))

	// Duplicates created in one transaction: the first entry survives.
	assert.Equal(t, StatusInProgress, first.Status)
	assert.Equal(t, StatusCompleted, second.Status)
	assert.Equal(t, StatusInProgress, third.Status)
}

func TestMarkMatchingRemindersCompletedAllAgainstSaved(t *testing.T) {
	// When the batch was already saved, the store query lets a later entry
	// retroactively complete an earlier saved reminder.
	rt := vaccinationType(months(6), []Rule{{List: true}})
	patient := uuid.New()
	older := newReminder(patient, rt)
	store := &fakeRulesStore{reminders: []*Reminder{older}}
	ru := rulesUnderTest(store, rt)

	newer := newReminder(patient, rt)
	require.NoError(t, ru.MarkMatchingRemindersCompletedAll(context.Background(), []*Reminder{newer}))

	assert.Equal(t, StatusCompleted, older.Status)
	assert.Equal(t, StatusInProgress, newer.Status)
}

func TestMarkMatchingAlertsCompleted(t *testing.T) {
	patient := uuid.New()
	alertType := uuid.New()
	saved := &Alert{ID: uuid.New(), PatientID: patient, AlertTypeID: alertType, Status: StatusInProgress}
	otherType := &Alert{ID: uuid.New(), PatientID: patient, AlertTypeID: uuid.New(), Status: StatusInProgress}
	store := &fakeRulesStore{alerts: []*Alert{saved, otherType}}
	ru := rulesUnderTest(store)

	incoming := &Alert{ID: uuid.New(), PatientID: patient, AlertTypeID: alertType, Status: StatusInProgress}
	require.NoError(t, ru.MarkMatchingAlertsCompleted(context.Background(), incoming))

	assert.Equal(t, StatusCompleted, saved.Status)
	require.NotNil(t, saved.CompletedAt)
	// Alerts match on alert type only; no group semantics.
	assert.Equal(t, StatusInProgress, otherType.Status)
	assert.Equal(t, StatusInProgress, incoming.Status)
	assert.Equal(t, 1, store.alertSaves)
}

func TestMarkMatchingAlertsCompletedAll(t *testing.T) {
	patient := uuid.New()
	alertType := uuid.New()
	first := &Alert{ID: uuid.New(), PatientID: patient, AlertTypeID: alertType, Status: StatusInProgress}
	second := &Alert{ID: uuid.New(), PatientID: patient, AlertTypeID: alertType, Status: StatusInProgress}
	store := &fakeRulesStore{}
	ru := rulesUnderTest(store)

	require.NoError(t, ru.MarkMatchingAlertsCompletedAll(context.Background(), []*Alert{first, second}))
	assert.Equal(t, StatusInProgress, first.Status)
	assert.Equal(t, StatusCompleted, second.Status)
}

func TestUpdateReminderAdvancesOnLastItem(t *testing.T) {
	rt := vaccinationType(months(6), []Rule{{List: true}})
	patient := uuid.New()
	r := newReminder(patient, rt)
	resolved := &Item{ID: uuid.New(), ReminderID: r.ID, Kind: KindEmail, Status: ItemCompleted}
	r.Items = []*Item{resolved}
	ru := rulesUnderTest(&fakeRulesStore{}, rt)

	advanced, err := ru.UpdateReminder(context.Background(), r, resolved)
	require.NoError(t, err)
	assert.True(t, advanced)
	assert.Equal(t, 1, r.ReminderCount)
	// Tier 0 carries a one month overdue interval.
	assert.Equal(t, date(2024, time.July, 1), r.DueDate)
}

func TestUpdateReminderWaitsForSiblings(t *testing.T) {
	rt := vaccinationType(months(6), []Rule{{List: true}})
	patient := uuid.New()
	r := newReminder(patient, rt)
	resolved := &Item{ID: uuid.New(), ReminderID: r.ID, Kind: KindEmail, Status: ItemCompleted}
	sibling := &Item{ID: uuid.New(), ReminderID: r.ID, Kind: KindPrint, Status: ItemPending}
	r.Items = []*Item{resolved, sibling}
	ru := rulesUnderTest(&fakeRulesStore{}, rt)

	advanced, err := ru.UpdateReminder(context.Background(), r, resolved)
	require.NoError(t, err)
	assert.False(t, advanced)
	assert.Equal(t, 0, r.ReminderCount)
	assert.Equal(t, date(2024, time.June, 1), r.DueDate)

	// An ERROR sibling blocks advancement the same way a PENDING one does.
	sibling.Status = ItemError
	advanced, err = ru.UpdateReminder(context.Background(), r, resolved)
	require.NoError(t, err)
	assert.False(t, advanced)

	// Once the sibling is cancelled, the resolved item is the last one out.
	sibling.Status = ItemCancelled
	advanced, err = ru.UpdateReminder(context.Background(), r, resolved)
	require.NoError(t, err)
	assert.True(t, advanced)
	assert.Equal(t, 1, r.ReminderCount)
}

func TestUpdateReminderWithoutNextTier(t *testing.T) {
	rt := vaccinationType(months(6), []Rule{{List: true}})
	patient := uuid.New()
	r := newReminder(patient, rt)
	r.ReminderCount = 4
	resolved := &Item{ID: uuid.New(), ReminderID: r.ID, Kind: KindList, Status: ItemCompleted}
	r.Items = []*Item{resolved}
	ru := rulesUnderTest(&fakeRulesStore{}, rt)

	advanced, err := ru.UpdateReminder(context.Background(), r, resolved)
	require.NoError(t, err)
	assert.True(t, advanced)
	assert.Equal(t, 5, r.ReminderCount)
	// No tier 4: the due date stays put.
	assert.Equal(t, date(2024, time.June, 1), r.DueDate)
}

func TestDocumentFormReminder(t *testing.T) {
	rt := vaccinationType(months(6), []Rule{{List: true}})
	patient := uuid.New()
	invoiceItem := uuid.New()

	near := newReminder(patient, rt)
	near.DueDate = date(2024, time.June, 3)
	far := newReminder(patient, rt)
	far.DueDate = date(2024, time.August, 1)
	store := &fakeRulesStore{byInvoice: map[uuid.UUID][]*Reminder{invoiceItem: {far, near}}}
	ru := rulesUnderTest(store, rt)

	form := &DocumentForm{ID: uuid.New(), PatientID: patient, InvoiceItemID: &invoiceItem, Date: date(2024, time.June, 1)}
	got, err := ru.DocumentFormReminder(context.Background(), form)
	require.NoError(t, err)
	assert.Equal(t, near, got)

	// No invoice linkage, no reminder.
	got, err = ru.DocumentFormReminder(context.Background(), &DocumentForm{ID: uuid.New(), PatientID: patient, Date: form.Date})
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestDocumentFormReminderTieBreaksOnID(t *testing.T) {
	rt := vaccinationType(months(6), []Rule{{List: true}})
	patient := uuid.New()
	invoiceItem := uuid.New()

	a := newReminder(patient, rt)
	b := newReminder(patient, rt)
	a.DueDate = date(2024, time.June, 1)
	b.DueDate = date(2024, time.June, 1)
	lowest := a
	if b.ID.String() < a.ID.String() {
		lowest = b
	}
	store := &fakeRulesStore{byInvoice: map[uuid.UUID][]*Reminder{invoiceItem: {a, b}}}
	ru := rulesUnderTest(store, rt)

	form := &DocumentForm{ID: uuid.New(), PatientID: patient, InvoiceItemID: &invoiceItem, Date: date(2024, time.June, 1)}
	got, err := ru.DocumentFormReminder(context.Background(), form)
	require.NoError(t, err)
	assert.Equal(t, lowest, got)
}

func TestCalculateDueDate(t *testing.T) {
	rt := vaccinationType(months(6), []Rule{{List: true}})
	patient := uuid.New()
	ru := rulesUnderTest(&fakeRulesStore{}, rt)

	r := &Reminder{ID: uuid.New(), PatientID: patient, TypeID: rt.ID, Status: StatusInProgress}
	require.NoError(t, ru.CalculateDueDate(context.Background(), r, date(2024, time.June, 1)))
	assert.Equal(t, date(2025, time.June, 1), r.DueDate)
	assert.Equal(t, r.DueDate, r.FirstDueDate)

	// An established first due date is preserved on recalculation.
	r.FirstDueDate = date(2024, time.January, 1)
	require.NoError(t, ru.CalculateDueDate(context.Background(), r, date(2024, time.July, 1)))
	assert.Equal(t, date(2025, time.July, 1), r.DueDate)
	assert.Equal(t, date(2024, time.January, 1), r.FirstDueDate)

	r.TypeID = uuid.New()
	assert.ErrorIs(t, ru.CalculateDueDate(context.Background(), r, date(2024, time.June, 1)), ErrNoReminderType)
}
