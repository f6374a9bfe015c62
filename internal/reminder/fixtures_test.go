package reminder

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/clinicware/vet-reminders/internal/party"
)

// fakeTypes is an in-memory TypeSource.
type fakeTypes map[uuid.UUID]*Type

func (f fakeTypes) ReminderType(_ context.Context, id uuid.UUID) (*Type, error) {
	return f[id], nil
}

// fakeParties is an in-memory PartySource keyed by patient id.
type fakeParties struct {
	patients map[uuid.UUID]*party.Patient
	owners   map[uuid.UUID]*party.Customer
}

func newFakeParties() *fakeParties {
	return &fakeParties{
		patients: make(map[uuid.UUID]*party.Patient),
		owners:   make(map[uuid.UUID]*party.Customer),
	}
}

func (f *fakeParties) add(patient *party.Patient, owner *party.Customer) {
	f.patients[patient.ID] = patient
	f.owners[patient.ID] = owner
}

func (f *fakeParties) Patient(_ context.Context, id uuid.UUID) (*party.Patient, error) {
	return f.patients[id], nil
}

func (f *fakeParties) Owner(_ context.Context, patientID uuid.UUID) (*party.Customer, error) {
	return f.owners[patientID], nil
}

func uuid4() uuid.UUID { return uuid.New() }

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func days(n int) Interval   { return Interval{Count: n, Units: Days} }
func months(n int) Interval { return Interval{Count: n, Units: Months} }

// vaccinationType builds an active type with a 1 year default interval, the
// given cancel interval and one tier per rule list supplied.
func vaccinationType(cancel Interval, tiers ...[]Rule) *Type {
	rt := &Type{
		ID:              uuid.New(),
		Name:            "Vaccination",
		Active:          true,
		DefaultInterval: Interval{Count: 1, Units: Years},
		CancelInterval:  cancel,
		Sensitivity:     days(3),
	}
	for i, rules := range tiers {
		rt.Counts = append(rt.Counts, Count{
			Count:    i,
			Interval: months(1),
			Rules:    rules,
			Template: fullTemplate(),
		})
	}
	return rt
}

func fullTemplate() *Template {
	return &Template{
		ID:        uuid.New(),
		Name:      "Vaccination Reminder",
		EmailText: "Dear {customer}, {patient} is due for a vaccination.",
		SMSText:   "{patient} is due for a vaccination.",
	}
}

func emailContact(customerID uuid.UUID, purposes ...string) party.Contact {
	return party.Contact{
		ID:         uuid.New(),
		CustomerID: customerID,
		Kind:       party.ContactEmail,
		Value:      "owner@example.com",
		Purposes:   purposes,
	}
}

func phoneContact(customerID uuid.UUID, sms bool, purposes ...string) party.Contact {
	return party.Contact{
		ID:         uuid.New(),
		CustomerID: customerID,
		Kind:       party.ContactPhone,
		Value:      "0412345678",
		SMS:        sms,
		Purposes:   purposes,
	}
}

func locationContact(customerID uuid.UUID, purposes ...string) party.Contact {
	return party.Contact{
		ID:         uuid.New(),
		CustomerID: customerID,
		Kind:       party.ContactLocation,
		Value:      "12 Example St",
		Purposes:   purposes,
	}
}

// fixture wires a processor with one patient, its owner and one type.
type fixture struct {
	types    fakeTypes
	parties  *fakeParties
	patient  *party.Patient
	customer *party.Customer
	rt       *Type
}

func newFixture(rt *Type, contacts ...party.Contact) *fixture {
	customer := &party.Customer{ID: uuid.New(), Name: "J Bloggs", Active: true, Contacts: contacts}
	patient := &party.Patient{ID: uuid.New(), CustomerID: customer.ID, Name: "Rex", Species: "Canine", Active: true}
	parties := newFakeParties()
	parties.add(patient, customer)
	return &fixture{
		types:    fakeTypes{rt.ID: rt},
		parties:  parties,
		patient:  patient,
		customer: customer,
		rt:       rt,
	}
}

func (f *fixture) processor(processingDate time.Time, disableSMS bool) *Processor {
	return NewProcessor(processingDate, DefaultConfiguration(), disableSMS, f.parties, f.types)
}

func (f *fixture) reminder(dueDate time.Time, count int) *Reminder {
	return &Reminder{
		ID:            uuid.New(),
		PatientID:     f.patient.ID,
		TypeID:        f.rt.ID,
		DueDate:       dueDate,
		FirstDueDate:  dueDate,
		ReminderCount: count,
		Status:        StatusInProgress,
		CreatedAt:     dueDate.AddDate(-1, 0, 0),
	}
}

func kindsOf(items []*Item) []ItemKind {
	kinds := make([]ItemKind, len(items))
	for i, item := range items {
		kinds[i] = item.Kind
	}
	return kinds
}
