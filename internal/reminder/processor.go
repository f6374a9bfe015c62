package reminder

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/clinicware/vet-reminders/internal/party"
)

// PartySource resolves the patients and customers reminders refer to.
// Lookups return nil with no error when the record does not exist.
type PartySource interface {
	Patient(ctx context.Context, id uuid.UUID) (*party.Patient, error)
	// Owner returns the customer owning a patient, with contacts loaded.
	Owner(ctx context.Context, patientID uuid.UUID) (*party.Customer, error)
}

// Outcome is the result of evaluating one reminder.
type Outcome string

const (
	OutcomeCancelled Outcome = "cancelled"
	OutcomeSkipped   Outcome = "skipped"
	OutcomeGenerated Outcome = "generated"
)

// Event describes one processed reminder, for statistics and logging hooks.
type Event struct {
	Reminder *Reminder
	Outcome  Outcome
	Items    []*Item
}

// Listener observes processing outcomes.
type Listener func(Event)

// Batch is the set of records a process call requires the caller to persist.
// An empty batch means the reminder was skipped and nothing changed.
type Batch struct {
	// Reminder is the evaluated reminder; nil when nothing is to be saved.
	Reminder *Reminder
	// Items are new or status-changed reminder items.
	Items []*Item
}

// Empty reports whether the batch contains nothing to save.
func (b Batch) Empty() bool {
	return b.Reminder == nil && len(b.Items) == 0
}

// Processor evaluates reminders due on or before a processing date and turns
// them into reminder items, one reminder per call. Holds a per-run type cache;
// not safe for concurrent use.
type Processor struct {
	processingDate time.Time
	config         Configuration
	disableSMS     bool
	parties        PartySource
	types          *Types
	listeners      []Listener
	now            func() time.Time
}

// NewProcessor creates a processor for reminders due on or before date.
// disableSMS silently suppresses every SMS channel attempt.
func NewProcessor(date time.Time, config Configuration, disableSMS bool, parties PartySource, types TypeSource) *Processor {
	return &Processor{
		processingDate: date,
		config:         config,
		disableSMS:     disableSMS,
		parties:        parties,
		types:          NewTypes(types),
		now:            time.Now,
	}
}

// AddListener registers a hook invoked after each reminder is evaluated.
func (p *Processor) AddListener(l Listener) {
	p.listeners = append(p.listeners, l)
}

// Process evaluates a reminder at its current escalation tier.
func (p *Processor) Process(ctx context.Context, r *Reminder) (Batch, error) {
	return p.process(ctx, r, r.ReminderCount, false)
}

// ProcessCount evaluates a reminder at a specific escalation tier, ignoring
// the due date. Used to regenerate items for a tier on demand.
func (p *Processor) ProcessCount(ctx context.Context, r *Reminder, count int) (Batch, error) {
	return p.process(ctx, r, count, true)
}

// ProcessContact generates a single reminder item targeting a specific
// contact. The caller is responsible for saving the returned item and the
// reminder it is linked to.
func (p *Processor) ProcessContact(ctx context.Context, r *Reminder, count int, contact party.Contact) (*Item, error) {
	reminderType, err := p.ReminderType(ctx, r)
	if err != nil {
		return nil, err
	}
	if reminderType.ReminderCount(count) == nil {
		return nil, &NoCountError{TypeName: reminderType.Name, Count: count}
	}
	var kind ItemKind
	switch contact.Kind {
	case party.ContactEmail:
		kind = KindEmail
	case party.ContactPhone:
		if p.disableSMS {
			return nil, fmt.Errorf("reminder: cannot process phone contact: SMS is disabled")
		}
		if !contact.SMS {
			return nil, fmt.Errorf("reminder: contact %s cannot receive SMS", contact.ID)
		}
		kind = KindSMS
	case party.ContactLocation:
		kind = KindPrint
	default:
		return nil, fmt.Errorf("reminder: invalid contact kind %q", contact.Kind)
	}
	batch := Batch{}
	item := p.createItem(r, kind, count, "", &batch)
	return item, nil
}

// Patient returns the patient a reminder refers to.
func (p *Processor) Patient(ctx context.Context, r *Reminder) (*party.Patient, error) {
	patient, err := p.parties.Patient(ctx, r.PatientID)
	if err != nil {
		return nil, fmt.Errorf("reminder: load patient %s: %w", r.PatientID, err)
	}
	if patient == nil {
		return nil, ErrNoPatient
	}
	return patient, nil
}

// Customer returns the customer owning a patient, or nil if none is found.
func (p *Processor) Customer(ctx context.Context, patient *party.Patient) (*party.Customer, error) {
	customer, err := p.parties.Owner(ctx, patient.ID)
	if err != nil {
		return nil, fmt.Errorf("reminder: load owner of patient %s: %w", patient.ID, err)
	}
	return customer, nil
}

// ReminderType returns the type definition a reminder refers to.
func (p *Processor) ReminderType(ctx context.Context, r *Reminder) (*Type, error) {
	reminderType, err := p.types.Get(ctx, r.TypeID)
	if err != nil {
		return nil, err
	}
	if reminderType == nil {
		return nil, ErrNoReminderType
	}
	return reminderType, nil
}

func (p *Processor) process(ctx context.Context, r *Reminder, count int, ignoreDueDate bool) (Batch, error) {
	reminderType, err := p.ReminderType(ctx, r)
	if err != nil {
		return Batch{}, err
	}
	if !ignoreDueDate && reminderType.ShouldCancel(r.DueDate, p.processingDate) {
		return p.cancel(r), nil
	}
	patient, err := p.Patient(ctx, r)
	if err != nil {
		return Batch{}, err
	}
	if !patient.Active || patient.Deceased {
		return p.cancel(r), nil
	}
	tier := reminderType.ReminderCount(count)
	if tier == nil {
		if count == 0 {
			// Nothing configured at all; list the reminder so it is not lost.
			batch := Batch{Reminder: r}
			message := (&NoCountError{TypeName: reminderType.Name, Count: count}).Error()
			p.createItem(r, KindList, count, message, &batch)
			p.notify(Event{Reminder: r, Outcome: OutcomeGenerated, Items: batch.Items})
			return batch, nil
		}
		// Higher tiers with no configuration are valid; skip the reminder.
		p.notify(Event{Reminder: r, Outcome: OutcomeSkipped})
		return Batch{}, nil
	}
	customer, err := p.Customer(ctx, patient)
	if err != nil {
		return Batch{}, err
	}
	var contacts []party.Contact
	if customer != nil {
		contacts = party.SortContacts(customer.Contacts)
	}
	batch := p.generate(r, tier, contacts)
	p.notify(Event{Reminder: r, Outcome: OutcomeGenerated, Items: batch.Items})
	return batch, nil
}

// generate evaluates the tier's rules in declared order against the
// customer's contacts. The first rule whose match policy is satisfied wins;
// no merging of later rules occurs. With no match, a list item carrying a
// diagnostic message is produced so the reminder is never silently lost.
func (p *Processor) generate(r *Reminder, tier *Count, contacts []party.Contact) Batch {
	var matched []party.Contact
	var winner *Rule
	for i := range tier.Rules {
		if matches, ok := p.matchContacts(&tier.Rules[i], contacts, tier.Template); ok {
			matched = matches
			winner = &tier.Rules[i]
			break
		}
	}
	batch := Batch{Reminder: r}
	if winner == nil {
		p.createItem(r, KindList, tier.Count, ErrNoContactsForRules.Error(), &batch)
		return batch
	}
	if winner.SendTo == SendToAll || winner.SendTo == SendToAny {
		if winner.Email {
			p.generateIfContact(r, KindEmail, party.ContactEmail, matched, tier.Count, &batch)
		}
		if !p.disableSMS && winner.SMS {
			p.generateIfContact(r, KindSMS, party.ContactPhone, matched, tier.Count, &batch)
		}
		if winner.Print {
			p.generateIfContact(r, KindPrint, party.ContactLocation, matched, tier.Count, &batch)
		}
	} else {
		// FIRST: one item, channels attempted in email > SMS > print order.
		generated := winner.Email && p.generateIfContact(r, KindEmail, party.ContactEmail, matched, tier.Count, &batch)
		if !generated {
			generated = !p.disableSMS && winner.SMS &&
				p.generateIfContact(r, KindSMS, party.ContactPhone, matched, tier.Count, &batch)
			if !generated && winner.Print {
				p.generateIfContact(r, KindPrint, party.ContactLocation, matched, tier.Count, &batch)
			}
		}
	}
	// Export and list are generated in addition to the channels above.
	if winner.Export {
		p.generateIfContact(r, KindExport, party.ContactLocation, matched, tier.Count, &batch)
	}
	if winner.List {
		p.createItem(r, KindList, tier.Count, "", &batch)
	}
	return batch
}

// generateIfContact creates an item of the given kind when the matched set
// contains a contact of the required kind.
func (p *Processor) generateIfContact(r *Reminder, kind ItemKind, contactKind party.ContactKind, matched []party.Contact, count int, batch *Batch) bool {
	if !hasContact(contactKind, matched) {
		return false
	}
	p.createItem(r, kind, count, "", batch)
	return true
}

func hasContact(kind party.ContactKind, contacts []party.Contact) bool {
	for _, c := range contacts {
		if c.Kind == kind {
			return true
		}
	}
	return false
}

// matchContacts accumulates the contacts a rule can reach. For SendToAll,
// every requested channel must contribute a contact or the rule fails; export
// and list are exempt from that requirement. For the other policies any
// non-empty accumulation satisfies the rule.
func (p *Processor) matchContacts(rule *Rule, contacts []party.Contact, template *Template) ([]party.Contact, bool) {
	isAll := rule.SendTo == SendToAll
	set := newContactSet()
	if len(contacts) > 0 {
		if rule.Contact {
			if !p.addReminderContacts(set, contacts, template) && isAll {
				return nil, false
			}
		}
		if rule.Email {
			if !addEmailContact(set, contacts, template) && isAll {
				return nil, false
			}
		}
		if rule.SMS && !p.disableSMS {
			if !addSMSContact(set, contacts, template) && isAll {
				return nil, false
			}
		} else if rule.SMS && isAll {
			// SMS is globally disabled, so an ALL rule requesting it can
			// never be satisfied.
			return nil, false
		}
		if rule.Print {
			if !addLocationContact(set, contacts, template) && isAll {
				return nil, false
			}
		}
	}
	if rule.Export {
		set.addBest(contacts, party.PurposeMatcher(party.ContactLocation, party.PurposeReminder, false))
	}
	if rule.List {
		set.addBest(contacts, party.PurposeMatcher(party.ContactPhone, party.PurposeReminder, false))
	}
	return set.contacts, len(set.contacts) > 0
}

// addReminderContacts pulls every contact tagged with the REMINDER purpose,
// gated by the channels the tier's template can produce. Without a template
// nothing is added.
func (p *Processor) addReminderContacts(set *contactSet, contacts []party.Contact, template *Template) bool {
	before := len(set.contacts)
	if template != nil {
		if !p.disableSMS && template.HasSMS() {
			set.addAll(contacts, party.SMSMatcher(party.PurposeReminder, true))
		}
		set.addAll(contacts, party.PurposeMatcher(party.ContactLocation, party.PurposeReminder, true))
		if template.HasEmail() {
			set.addAll(contacts, party.PurposeMatcher(party.ContactEmail, party.PurposeReminder, true))
		}
	}
	return len(set.contacts) != before
}

func addEmailContact(set *contactSet, contacts []party.Contact, template *Template) bool {
	return template.HasEmail() &&
		set.addBest(contacts, party.PurposeMatcher(party.ContactEmail, party.PurposeReminder, false))
}

func addSMSContact(set *contactSet, contacts []party.Contact, template *Template) bool {
	return template.HasSMS() &&
		set.addBest(contacts, party.SMSMatcher(party.PurposeReminder, false))
}

func addLocationContact(set *contactSet, contacts []party.Contact, template *Template) bool {
	return template != nil &&
		set.addBest(contacts, party.PurposeMatcher(party.ContactLocation, party.PurposeReminder, false))
}

// contactSet accumulates matched contacts, de-duplicated by ID.
type contactSet struct {
	contacts []party.Contact
	seen     map[uuid.UUID]struct{}
}

func newContactSet() *contactSet {
	return &contactSet{seen: make(map[uuid.UUID]struct{})}
}

func (s *contactSet) add(c party.Contact) {
	if _, ok := s.seen[c.ID]; ok {
		return
	}
	s.seen[c.ID] = struct{}{}
	s.contacts = append(s.contacts, c)
}

// addBest adds the single best-preference contact accepted by the matcher.
func (s *contactSet) addBest(contacts []party.Contact, matcher party.Matcher) bool {
	if c := party.Find(contacts, matcher); c != nil {
		s.add(*c)
		return true
	}
	return false
}

// addAll adds every contact accepted by the matcher.
func (s *contactSet) addAll(contacts []party.Contact, matcher party.Matcher) {
	for _, c := range party.FindAll(contacts, matcher) {
		s.add(c)
	}
}

func (p *Processor) notify(e Event) {
	for _, l := range p.listeners {
		l(e)
	}
}

func (p *Processor) cancel(r *Reminder) Batch {
	r.Status = StatusCancelled
	batch := Batch{Reminder: r}
	for _, item := range r.Items {
		if item.Status != ItemCompleted {
			item.Status = ItemCancelled
			batch.Items = append(batch.Items, item)
		}
	}
	p.notify(Event{Reminder: r, Outcome: OutcomeCancelled, Items: batch.Items})
	return batch
}

func (p *Processor) createItem(r *Reminder, kind ItemKind, count int, errorMessage string, batch *Batch) *Item {
	item := &Item{
		ID:         uuid.New(),
		ReminderID: r.ID,
		Kind:       kind,
		SendFrom:   DateOf(p.config.SendDate(r.DueDate, kind)),
		DueDate:    r.DueDate,
		Count:      count,
		Status:     ItemPending,
		CreatedAt:  p.now(),
	}
	if errorMessage != "" {
		item.Status = ItemError
		item.Error = errorMessage
	}
	r.Items = append(r.Items, item)
	batch.Items = append(batch.Items, item)
	return item
}
