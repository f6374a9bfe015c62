package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/clinicware/vet-reminders/internal/reminder"
)

// InProgressAlerts returns saved IN_PROGRESS alerts for a patient and alert
// type, ordered by id.
func (s *Store) InProgressAlerts(ctx context.Context, patientID, alertTypeID uuid.UUID) ([]*reminder.Alert, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, patient_id, alert_type_id, status, completed_at, created_at
		FROM alerts
		WHERE patient_id = $1 AND alert_type_id = $2 AND status = 'IN_PROGRESS'
		ORDER BY id`, patientID, alertTypeID)
	if err != nil {
		return nil, fmt.Errorf("store: in-progress alerts: %w", err)
	}
	defer rows.Close()

	var out []*reminder.Alert
	for rows.Next() {
		var (
			a      reminder.Alert
			status string
		)
		if err := rows.Scan(&a.ID, &a.PatientID, &a.AlertTypeID, &status, &a.CompletedAt, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("store: scan alert: %w", err)
		}
		a.Status = reminder.Status(status)
		out = append(out, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: in-progress alerts: %w", err)
	}
	return out, nil
}

// SaveAlerts upserts alerts.
func (s *Store) SaveAlerts(ctx context.Context, alerts []*reminder.Alert) error {
	for _, a := range alerts {
		if a.ID == uuid.Nil {
			a.ID = uuid.New()
		}
		if a.CreatedAt.IsZero() {
			a.CreatedAt = time.Now().UTC()
		}
		_, err := s.db.Exec(ctx, `
			INSERT INTO alerts (id, patient_id, alert_type_id, status, completed_at, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (id) DO UPDATE SET
				status = EXCLUDED.status,
				completed_at = EXCLUDED.completed_at`,
			a.ID, a.PatientID, a.AlertTypeID, string(a.Status), a.CompletedAt, a.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("store: save alert: %w", err)
		}
	}
	return nil
}
