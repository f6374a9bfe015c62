// Package practice provides practice-level settings for reminder processing:
// which channels are enabled, their timing windows and grouping preferences.
package practice

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/clinicware/vet-reminders/internal/reminder"
)

// Settings holds a practice's reminder configuration.
type Settings struct {
	PracticeID string `json:"practice_id"`
	Name       string `json:"name"`
	Timezone   string `json:"timezone"`
	// DisableSMS suppresses all SMS reminder attempts for the practice.
	DisableSMS bool `json:"disable_sms"`
	// Reminders carries the per-channel timing windows.
	Reminders reminder.Configuration `json:"reminders"`
	// Grouping controls which kinds may batch into a single message.
	Grouping reminder.GroupingPolicy `json:"grouping"`
}

// DefaultSettings returns the configuration a new practice starts with.
func DefaultSettings(practiceID string) *Settings {
	return &Settings{
		PracticeID: practiceID,
		Timezone:   "UTC",
		Reminders:  reminder.DefaultConfiguration(),
		Grouping:   reminder.GroupingPolicy{Email: true, Print: true},
	}
}

// Store provides persistence for practice settings.
type Store struct {
	redis *redis.Client
}

// NewStore creates a new practice settings store.
func NewStore(redisClient *redis.Client) *Store {
	return &Store{redis: redisClient}
}

func (s *Store) key(practiceID string) string {
	return fmt.Sprintf("practice:settings:%s", practiceID)
}

// Get retrieves practice settings, returning defaults if not found.
func (s *Store) Get(ctx context.Context, practiceID string) (*Settings, error) {
	data, err := s.redis.Get(ctx, s.key(practiceID)).Bytes()
	if err == redis.Nil {
		return DefaultSettings(practiceID), nil
	}
	if err != nil {
		return nil, fmt.Errorf("practice: get settings: %w", err)
	}

	var settings Settings
	if err := json.Unmarshal(data, &settings); err != nil {
		return nil, fmt.Errorf("practice: unmarshal settings: %w", err)
	}

	return &settings, nil
}

// Set saves practice settings.
func (s *Store) Set(ctx context.Context, settings *Settings) error {
	data, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("practice: marshal settings: %w", err)
	}

	if err := s.redis.Set(ctx, s.key(settings.PracticeID), data, 0).Err(); err != nil {
		return fmt.Errorf("practice: set settings: %w", err)
	}

	return nil
}
