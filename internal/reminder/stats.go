package reminder

// Statistics accumulates per-run counts of reminder evaluation outcomes.
// Register it on a Processor via AddListener(stats.Listener()). Not safe for
// concurrent use; the processing model is single-threaded.
type Statistics struct {
	cancelled int
	skipped   int
	generated int
	errors    int
	byKind    map[ItemKind]int
}

// NewStatistics returns an empty Statistics.
func NewStatistics() *Statistics {
	return &Statistics{byKind: make(map[ItemKind]int)}
}

// Listener returns a processor listener that records each evaluation.
func (s *Statistics) Listener() Listener {
	return func(e Event) {
		switch e.Outcome {
		case OutcomeCancelled:
			s.cancelled++
		case OutcomeSkipped:
			s.skipped++
		case OutcomeGenerated:
			s.generated++
			for _, item := range e.Items {
				if item.Status == ItemError {
					s.errors++
				} else {
					s.byKind[item.Kind]++
				}
			}
		}
	}
}

// Cancelled returns the number of reminders cancelled this run.
func (s *Statistics) Cancelled() int { return s.cancelled }

// Skipped returns the number of reminders skipped this run.
func (s *Statistics) Skipped() int { return s.skipped }

// Generated returns the number of reminders that produced items this run.
func (s *Statistics) Generated() int { return s.generated }

// Errors returns the number of items generated in ERROR status this run.
func (s *Statistics) Errors() int { return s.errors }

// Count returns the number of non-error items generated for a kind this run.
func (s *Statistics) Count(kind ItemKind) int { return s.byKind[kind] }

// Processed returns the total number of reminders evaluated this run.
func (s *Statistics) Processed() int { return s.cancelled + s.skipped + s.generated }
