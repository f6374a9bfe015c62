package reminder

import (
	"time"

	"github.com/google/uuid"
)

// Alert is a patient alert. Alerts share the reminder completion behaviour:
// creating a new alert supersedes in-progress alerts of the same type, keyed
// on patient and alert type only, with no group matching.
type Alert struct {
	ID          uuid.UUID
	PatientID   uuid.UUID
	AlertTypeID uuid.UUID
	Status      Status
	CompletedAt *time.Time
	CreatedAt   time.Time
}
