package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/clinicware/vet-reminders/internal/reminder"
)

// ReminderType loads a reminder-type definition with its escalation tiers,
// rules and templates. Returns nil with no error when the type does not
// exist.
func (s *Store) ReminderType(ctx context.Context, id uuid.UUID) (*reminder.Type, error) {
	var (
		t                reminder.Type
		defCount         int
		defUnits         string
		cancelCount      int
		cancelUnits      string
		sensitivityCount int
		sensitivityUnits string
		groupBy          string
	)
	err := s.db.QueryRow(ctx, `
		SELECT id, name, active, default_count, default_units, cancel_count, cancel_units,
		       sensitivity_count, sensitivity_units, group_by, groups, interactive
		FROM reminder_types
		WHERE id = $1`, id).Scan(
		&t.ID, &t.Name, &t.Active, &defCount, &defUnits, &cancelCount, &cancelUnits,
		&sensitivityCount, &sensitivityUnits, &groupBy, &t.Groups, &t.Interactive,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: load reminder type: %w", err)
	}
	t.DefaultInterval = reminder.Interval{Count: defCount, Units: reminder.ParseDateUnits(defUnits, reminder.Years)}
	t.CancelInterval = reminder.Interval{Count: cancelCount, Units: reminder.ParseDateUnits(cancelUnits, reminder.Days)}
	t.Sensitivity = reminder.Interval{Count: sensitivityCount, Units: reminder.ParseDateUnits(sensitivityUnits, reminder.Days)}
	t.GroupBy = parseGroupBy(groupBy)

	if t.Counts, err = s.reminderTypeCounts(ctx, id); err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *Store) reminderTypeCounts(ctx context.Context, typeID uuid.UUID) ([]reminder.Count, error) {
	rows, err := s.db.Query(ctx, `
		SELECT c.count, c.interval_count, c.interval_units,
		       t.id, t.name, t.email_text, t.sms_text
		FROM reminder_type_counts c
		LEFT JOIN reminder_templates t ON t.id = c.template_id
		WHERE c.type_id = $1
		ORDER BY c.count`, typeID)
	if err != nil {
		return nil, fmt.Errorf("store: load reminder type counts: %w", err)
	}
	defer rows.Close()

	var counts []reminder.Count
	for rows.Next() {
		var (
			c          reminder.Count
			units      string
			templateID *uuid.UUID
			name       *string
			emailText  *string
			smsText    *string
		)
		if err := rows.Scan(&c.Count, &c.Interval.Count, &units, &templateID, &name, &emailText, &smsText); err != nil {
			return nil, fmt.Errorf("store: scan reminder type count: %w", err)
		}
		c.Interval.Units = reminder.ParseDateUnits(units, reminder.Months)
		if templateID != nil {
			c.Template = &reminder.Template{ID: *templateID}
			if name != nil {
				c.Template.Name = *name
			}
			if emailText != nil {
				c.Template.EmailText = *emailText
			}
			if smsText != nil {
				c.Template.SMSText = *smsText
			}
		}
		counts = append(counts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: load reminder type counts: %w", err)
	}
	if err := s.attachRules(ctx, typeID, counts); err != nil {
		return nil, err
	}
	return counts, nil
}

func (s *Store) attachRules(ctx context.Context, typeID uuid.UUID, counts []reminder.Count) error {
	rows, err := s.db.Query(ctx, `
		SELECT count, contact, email, sms, print, export, list, send_to
		FROM reminder_type_rules
		WHERE type_id = $1
		ORDER BY count, seq`, typeID)
	if err != nil {
		return fmt.Errorf("store: load reminder type rules: %w", err)
	}
	defer rows.Close()

	byCount := make(map[int][]reminder.Rule)
	for rows.Next() {
		var (
			count  int
			rule   reminder.Rule
			sendTo string
		)
		if err := rows.Scan(&count, &rule.Contact, &rule.Email, &rule.SMS, &rule.Print, &rule.Export, &rule.List, &sendTo); err != nil {
			return fmt.Errorf("store: scan reminder type rule: %w", err)
		}
		rule.SendTo = parseSendTo(sendTo)
		byCount[count] = append(byCount[count], rule)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("store: load reminder type rules: %w", err)
	}
	for i := range counts {
		counts[i].Rules = byCount[counts[i].Count]
	}
	return nil
}

func parseGroupBy(s string) reminder.GroupBy {
	switch reminder.GroupBy(s) {
	case reminder.GroupByCustomer:
		return reminder.GroupByCustomer
	case reminder.GroupByPatient:
		return reminder.GroupByPatient
	}
	return reminder.GroupByNone
}

func parseSendTo(s string) reminder.SendTo {
	switch reminder.SendTo(s) {
	case reminder.SendToFirst:
		return reminder.SendToFirst
	case reminder.SendToAny:
		return reminder.SendToAny
	}
	return reminder.SendToAll
}
