package notify

import (
	"strings"
	"time"
)

// RenderTemplate substitutes the placeholders a reminder template body may
// carry: {customer}, {patient} and {date}. Grouped reminders pass several
// patient names; they render as a natural-language list.
func RenderTemplate(text, customer string, patients []string, due time.Time) string {
	r := strings.NewReplacer(
		"{customer}", customer,
		"{patient}", JoinNames(patients),
		"{date}", due.Format("2 January 2006"),
	)
	return r.Replace(text)
}

// JoinNames renders patient names as "Rex", "Rex and Felix" or
// "Rex, Felix and Tom".
func JoinNames(names []string) string {
	switch len(names) {
	case 0:
		return ""
	case 1:
		return names[0]
	case 2:
		return names[0] + " and " + names[1]
	default:
		return strings.Join(names[:len(names)-1], ", ") + " and " + names[len(names)-1]
	}
}

// ReminderSubject builds a default subject line for reminder emails.
func ReminderSubject(patients []string) string {
	if len(patients) == 0 {
		return "Reminder from your veterinary practice"
	}
	return "Reminder for " + JoinNames(patients)
}
