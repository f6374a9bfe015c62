package reminder

import (
	"context"

	"github.com/google/uuid"

	"github.com/clinicware/vet-reminders/internal/party"
)

// Group is a batch of reminder items dispatched together: a single message
// covering several reminders for one customer (or one patient). Ungrouped
// items travel in singleton groups.
type Group struct {
	Rows    []*ItemRow
	GroupBy GroupBy
}

// Kind returns the item kind shared by the group.
func (g *Group) Kind() ItemKind { return g.Rows[0].Item.Kind }

// Customer returns the customer shared by the group.
func (g *Group) Customer() *party.Customer { return g.Rows[0].Customer }

type patientBucket struct {
	patientID uuid.UUID
	rows      []*ItemRow
}

// GroupingReminderIterator layers greedy grouping onto a cursor-stable item
// stream. Rows are accumulated while the item kind and customer stay
// constant; the first row that breaks the run is pushed back and the
// accumulated buckets are flushed: patient-grouped batches first, then the
// customer-grouped batch, then ungrouped rows one at a time.
type GroupingReminderIterator struct {
	src    *UpdatableQueryIterator[*ItemRow]
	policy GroupingPolicy

	pushback *ItemRow

	have     bool
	kind     ItemKind
	customer uuid.UUID

	patients []*patientBucket
	byCust   []*ItemRow
	loose    []*ItemRow

	out []*Group
}

// NewGroupingReminderIterator wraps src, batching rows according to policy
// and each reminder type's grouping preference.
func NewGroupingReminderIterator(src *UpdatableQueryIterator[*ItemRow], policy GroupingPolicy) *GroupingReminderIterator {
	return &GroupingReminderIterator{src: src, policy: policy}
}

// Updated forwards a result-set mutation signal to the underlying iterator.
func (it *GroupingReminderIterator) Updated() {
	it.src.Updated()
}

// Next returns the next group. ok is false when the stream is exhausted and
// every pending bucket has been flushed.
func (it *GroupingReminderIterator) Next(ctx context.Context) (*Group, bool, error) {
	for len(it.out) == 0 {
		row, ok, err := it.next(ctx)
		if err != nil {
			return nil, false, err
		}
		if !ok {
			if !it.have {
				return nil, false, nil
			}
			it.flush()
			continue
		}
		if !it.have {
			it.start(row)
			continue
		}
		if row.Item.Kind != it.kind || customerID(row) != it.customer {
			it.pushback = row
			it.flush()
			continue
		}
		it.place(row)
	}
	g := it.out[0]
	it.out = it.out[1:]
	return g, true, nil
}

func (it *GroupingReminderIterator) next(ctx context.Context) (*ItemRow, bool, error) {
	if it.pushback != nil {
		row := it.pushback
		it.pushback = nil
		return row, true, nil
	}
	return it.src.Next(ctx)
}

func (it *GroupingReminderIterator) start(row *ItemRow) {
	it.have = true
	it.kind = row.Item.Kind
	it.customer = customerID(row)
	it.place(row)
}

func customerID(row *ItemRow) uuid.UUID {
	if row.Customer == nil {
		return uuid.Nil
	}
	return row.Customer.ID
}

func (it *GroupingReminderIterator) place(row *ItemRow) {
	switch it.groupBy(row) {
	case GroupByPatient:
		for _, b := range it.patients {
			if b.patientID == row.Patient.ID {
				b.rows = append(b.rows, row)
				return
			}
		}
		it.patients = append(it.patients, &patientBucket{patientID: row.Patient.ID, rows: []*ItemRow{row}})
	case GroupByCustomer:
		it.byCust = append(it.byCust, row)
	default:
		it.loose = append(it.loose, row)
	}
}

// groupBy resolves the effective grouping for a row: the reminder type's
// preference, gated by the policy for the item's kind. Export and list items
// never group.
func (it *GroupingReminderIterator) groupBy(row *ItemRow) GroupBy {
	if row.ReminderType == nil || !it.policy.Groups(row.Item.Kind) {
		return GroupByNone
	}
	return row.ReminderType.GroupBy
}

// flush drains the pending buckets into the output queue in priority order
// and resets the run.
func (it *GroupingReminderIterator) flush() {
	for _, b := range it.patients {
		it.out = append(it.out, &Group{Rows: b.rows, GroupBy: GroupByPatient})
	}
	if len(it.byCust) > 0 {
		it.out = append(it.out, &Group{Rows: it.byCust, GroupBy: GroupByCustomer})
	}
	for _, row := range it.loose {
		it.out = append(it.out, &Group{Rows: []*ItemRow{row}, GroupBy: GroupByNone})
	}
	it.patients = nil
	it.byCust = nil
	it.loose = nil
	it.have = false
}
