package reminder

import (
	"errors"
	"fmt"
)

// ErrNoReminderType indicates a reminder references a type that cannot be
// resolved. The record is structurally broken and cannot be processed.
var ErrNoReminderType = errors.New("reminder: no reminder type")

// ErrNoPatient indicates a reminder references a patient that cannot be
// resolved.
var ErrNoPatient = errors.New("reminder: no patient")

// NoCountError indicates a reminder type defines no tier for the reminder's
// escalation level. For tier 0 this degrades to an ERROR list item; higher
// tiers are silently skipped.
type NoCountError struct {
	TypeName string
	Count    int
}

func (e *NoCountError) Error() string {
	return fmt.Sprintf("reminder: no reminder count %d configured for type %q", e.Count, e.TypeName)
}

// ErrNoContactsForRules indicates no rule of the current tier matched the
// customer's contacts. Not raised as a failure; recorded on the fallback list
// item as diagnostic text.
var ErrNoContactsForRules = errors.New("reminder: no contacts match the reminder count rules")
