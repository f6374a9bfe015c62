// Package send runs the reminder pipeline: evaluating due reminders into
// outbound items, then dispatching pending email and SMS items in grouped
// batches.
package send

import (
	"context"
	"fmt"
	"time"

	"github.com/clinicware/vet-reminders/internal/notify"
	"github.com/clinicware/vet-reminders/internal/observability/metrics"
	"github.com/clinicware/vet-reminders/internal/party"
	"github.com/clinicware/vet-reminders/internal/reminder"
	"github.com/clinicware/vet-reminders/pkg/logging"
)

// Store is the persistence surface the worker needs: the processor's party
// and type lookups, the housekeeping rules' store, and the paged queries the
// iterators consume.
type Store interface {
	reminder.TypeSource
	reminder.PartySource
	reminder.RulesStore

	DueReminders(ctx context.Context, q reminder.DueReminderQuery, offset, limit int) ([]*reminder.Reminder, error)
	DueItems(ctx context.Context, q reminder.DueItemQuery, offset, limit int) ([]*reminder.ItemRow, error)
	SaveBatch(ctx context.Context, b reminder.Batch) error
	SaveItems(ctx context.Context, items []*reminder.Item) error
}

// Options configures a worker.
type Options struct {
	Config     reminder.Configuration
	Grouping   reminder.GroupingPolicy
	DisableSMS bool
	PageSize   int
	// PollInterval is the delay between runs when the worker is started as a
	// background loop.
	PollInterval time.Duration
}

// Worker evaluates and dispatches reminders.
type Worker struct {
	store   Store
	email   notify.EmailSender
	sms     notify.SMSSender
	metrics *metrics.ReminderMetrics
	logger  *logging.Logger
	opts    Options
	now     func() time.Time
}

// NewWorker creates a reminder worker.
func NewWorker(store Store, email notify.EmailSender, sms notify.SMSSender, m *metrics.ReminderMetrics, logger *logging.Logger, opts Options) *Worker {
	if logger == nil {
		logger = logging.Default()
	}
	if opts.PageSize <= 0 {
		opts.PageSize = 100
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 15 * time.Minute
	}
	return &Worker{
		store:   store,
		email:   email,
		sms:     sms,
		metrics: m,
		logger:  logger.WithComponent("send"),
		opts:    opts,
		now:     time.Now,
	}
}

// Start runs the worker until the context is cancelled, with one run per poll
// interval. The first run happens immediately.
func (w *Worker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.opts.PollInterval)
	defer ticker.Stop()
	for {
		if err := w.Run(ctx); err != nil {
			w.logger.Error("send: run failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Run performs one evaluation pass followed by one dispatch pass.
func (w *Worker) Run(ctx context.Context) error {
	started := w.now()
	stats, err := w.EvaluateDue(ctx)
	if err != nil {
		return err
	}
	sent, failed, err := w.DispatchDue(ctx)
	if err != nil {
		return err
	}
	w.metrics.ObserveRunDuration(time.Since(started).Seconds())
	w.logger.Info("send: run complete",
		"processed", stats.Processed(),
		"cancelled", stats.Cancelled(),
		"generated", stats.Generated(),
		"sent", sent,
		"failed", failed,
	)
	return nil
}

// EvaluateDue processes every reminder falling due within the send horizon,
// creating items or cancelling as the evaluation dictates. The query excludes
// reminders already queued at their current count, so each save removes the
// reminder from the result set; mutations are signalled to the iterator to
// keep paging stable while that happens.
func (w *Worker) EvaluateDue(ctx context.Context) (*reminder.Statistics, error) {
	now := w.now()
	to := w.opts.Config.MaxLeadTime(now)
	proc := reminder.NewProcessor(now, w.opts.Config, w.opts.DisableSMS, w.store, w.store)
	stats := reminder.NewStatistics()
	proc.AddListener(stats.Listener())
	proc.AddListener(func(e reminder.Event) {
		w.metrics.ObserveProcessed(string(e.Outcome))
		for _, item := range e.Items {
			w.metrics.ObserveItem(string(item.Kind), string(item.Status))
		}
	})

	q := reminder.DueReminderQuery{To: &to, Unqueued: true, PageSize: w.opts.PageSize}
	it := reminder.NewReminderIterator(func(ctx context.Context, offset, limit int) ([]*reminder.Reminder, error) {
		return w.store.DueReminders(ctx, q, offset, limit)
	}, q.PageSize)

	for {
		r, ok, err := it.Next(ctx)
		if err != nil {
			return stats, fmt.Errorf("send: evaluate due: %w", err)
		}
		if !ok {
			return stats, nil
		}
		batch, err := proc.Process(ctx, r)
		if err != nil {
			w.logger.Error("send: evaluate reminder failed", "reminder", r.ID, "error", err)
			continue
		}
		if batch.Empty() {
			continue
		}
		if err := w.store.SaveBatch(ctx, batch); err != nil {
			return stats, fmt.Errorf("send: evaluate due: %w", err)
		}
		it.Updated()
	}
}

// DispatchDue sends every pending email and SMS item whose send-from date has
// arrived, in grouped batches. Returns the number of groups sent and failed.
func (w *Worker) DispatchDue(ctx context.Context) (sent, failed int, err error) {
	now := w.now()
	q := reminder.DueItemQuery{
		Kinds:    []reminder.ItemKind{reminder.KindEmail, reminder.KindSMS},
		SendBy:   &now,
		PageSize: w.opts.PageSize,
	}
	types := reminder.NewTypes(w.store)
	src := reminder.NewItemIterator(func(ctx context.Context, offset, limit int) ([]*reminder.ItemRow, error) {
		rows, err := w.store.DueItems(ctx, q, offset, limit)
		if err != nil {
			return nil, err
		}
		for _, row := range rows {
			if row.ReminderType == nil {
				if row.ReminderType, err = types.Get(ctx, row.Reminder.TypeID); err != nil {
					return nil, err
				}
			}
		}
		return rows, nil
	}, q.PageSize)
	it := reminder.NewGroupingReminderIterator(src, w.opts.Grouping)
	rules := reminder.NewRules(w.store, types)

	for {
		group, ok, err := it.Next(ctx)
		if err != nil {
			return sent, failed, fmt.Errorf("send: dispatch due: %w", err)
		}
		if !ok {
			return sent, failed, nil
		}
		if err := w.dispatch(ctx, rules, group); err != nil {
			failed++
			w.logger.Error("send: dispatch group failed", "kind", group.Kind(), "error", err)
		} else {
			sent++
		}
		it.Updated()
	}
}

// dispatch sends one group. Lapsed items are cancelled rather than sent; the
// rest resolve together to a single message.
func (w *Worker) dispatch(ctx context.Context, rules *reminder.Rules, group *reminder.Group) error {
	now := w.now()
	kind := group.Kind()
	live := group.Rows[:0:0]
	var lapsed []*reminder.Item
	for _, row := range group.Rows {
		cancelBy := w.opts.Config.CancelDate(row.Item.SendFrom, kind)
		if reminder.DateOf(now).After(reminder.DateOf(cancelBy)) {
			row.Item.Status = reminder.ItemCancelled
			lapsed = append(lapsed, row.Item)
			w.metrics.ObserveSend(string(kind), "lapsed")
			continue
		}
		live = append(live, row)
	}
	if len(lapsed) > 0 {
		if err := w.store.SaveItems(ctx, lapsed); err != nil {
			return err
		}
	}
	if len(live) == 0 {
		return nil
	}

	err := w.send(ctx, kind, group.Customer(), live)
	status := reminder.ItemCompleted
	if err != nil {
		status = reminder.ItemError
		w.metrics.ObserveSend(string(kind), "error")
	} else {
		w.metrics.ObserveSend(string(kind), "sent")
	}

	var items []*reminder.Item
	for _, row := range live {
		row.Item.Status = status
		if err != nil {
			row.Item.Error = err.Error()
		}
		items = append(items, row.Item)
	}
	if saveErr := w.store.SaveItems(ctx, items); saveErr != nil {
		return saveErr
	}
	if err != nil {
		return err
	}

	// Advance each reminder whose last outstanding item just resolved.
	for _, row := range live {
		advanced, err := rules.UpdateReminder(ctx, row.Reminder, row.Item)
		if err != nil {
			return err
		}
		if advanced {
			if err := w.store.SaveReminders(ctx, []*reminder.Reminder{row.Reminder}); err != nil {
				return err
			}
		}
	}
	return nil
}

func (w *Worker) send(ctx context.Context, kind reminder.ItemKind, customer *party.Customer, rows []*reminder.ItemRow) error {
	if customer == nil {
		return fmt.Errorf("send: no customer for %s item %s", kind, rows[0].Item.ID)
	}
	template := templateFor(rows[0])
	patients := patientNames(rows)
	due := earliestDue(rows)
	contacts := party.SortContacts(customer.Contacts)

	switch kind {
	case reminder.KindEmail:
		if !template.HasEmail() {
			return fmt.Errorf("send: no email template for item %s", rows[0].Item.ID)
		}
		contact := party.Find(contacts, party.PurposeMatcher(party.ContactEmail, party.PurposeReminder, false))
		if contact == nil {
			return fmt.Errorf("send: customer %s has no email contact", customer.ID)
		}
		return w.email.Send(ctx, notify.EmailMessage{
			To:      contact.Value,
			ToName:  customer.Name,
			Subject: notify.ReminderSubject(patients),
			Body:    notify.RenderTemplate(template.EmailText, customer.Name, patients, due),
		})
	case reminder.KindSMS:
		if w.opts.DisableSMS {
			return fmt.Errorf("send: SMS is disabled")
		}
		if !template.HasSMS() {
			return fmt.Errorf("send: no SMS template for item %s", rows[0].Item.ID)
		}
		contact := party.Find(contacts, party.SMSMatcher(party.PurposeReminder, false))
		if contact == nil {
			return fmt.Errorf("send: customer %s has no SMS contact", customer.ID)
		}
		return w.sms.SendSMS(ctx, contact.Value, notify.RenderTemplate(template.SMSText, customer.Name, patients, due))
	}
	return fmt.Errorf("send: kind %s is not dispatchable", kind)
}

func templateFor(row *reminder.ItemRow) *reminder.Template {
	if row.ReminderType == nil {
		return nil
	}
	tier := row.ReminderType.ReminderCount(row.Item.Count)
	if tier == nil {
		return nil
	}
	return tier.Template
}

func patientNames(rows []*reminder.ItemRow) []string {
	var names []string
	seen := make(map[string]bool)
	for _, row := range rows {
		if row.Patient == nil || seen[row.Patient.Name] {
			continue
		}
		seen[row.Patient.Name] = true
		names = append(names, row.Patient.Name)
	}
	return names
}

func earliestDue(rows []*reminder.ItemRow) time.Time {
	due := rows[0].Item.DueDate
	for _, row := range rows[1:] {
		if row.Item.DueDate.Before(due) {
			due = row.Item.DueDate
		}
	}
	return due
}
