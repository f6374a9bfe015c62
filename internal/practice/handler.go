package practice

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/clinicware/vet-reminders/internal/reminder"
	"github.com/clinicware/vet-reminders/pkg/logging"
)

// Handler provides HTTP endpoints for practice settings management.
type Handler struct {
	store  *Store
	logger *logging.Logger
}

// NewHandler creates a practice settings HTTP handler.
func NewHandler(store *Store, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{store: store, logger: logger}
}

// Routes returns a chi router with practice admin routes.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/{practiceID}/settings", h.GetSettings)
	r.Put("/{practiceID}/settings", h.UpdateSettings)
	return r
}

// GetSettings returns the settings for a practice.
// GET /admin/practices/{practiceID}/settings
func (h *Handler) GetSettings(w http.ResponseWriter, r *http.Request) {
	practiceID := chi.URLParam(r, "practiceID")
	if practiceID == "" {
		http.Error(w, `{"error": "practice_id required"}`, http.StatusBadRequest)
		return
	}

	settings, err := h.store.Get(r.Context(), practiceID)
	if err != nil {
		h.logger.Error("failed to get practice settings", "practice_id", practiceID, "error", err)
		http.Error(w, `{"error": "internal server error"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(settings); err != nil {
		h.logger.Error("failed to encode practice settings", "practice_id", practiceID, "error", err)
	}
}

// UpdateSettingsRequest is the request body for updating practice settings.
// Absent fields leave the current value unchanged.
type UpdateSettingsRequest struct {
	Name       *string                  `json:"name,omitempty"`
	Timezone   *string                  `json:"timezone,omitempty"`
	DisableSMS *bool                    `json:"disable_sms,omitempty"`
	Reminders  *reminder.Configuration  `json:"reminders,omitempty"`
	Grouping   *reminder.GroupingPolicy `json:"grouping,omitempty"`
}

// UpdateSettings creates or updates the settings for a practice.
// PUT /admin/practices/{practiceID}/settings
func (h *Handler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	practiceID := chi.URLParam(r, "practiceID")
	if practiceID == "" {
		http.Error(w, `{"error": "practice_id required"}`, http.StatusBadRequest)
		return
	}

	var req UpdateSettingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error": "invalid JSON body"}`, http.StatusBadRequest)
		return
	}

	settings, err := h.store.Get(r.Context(), practiceID)
	if err != nil {
		h.logger.Error("failed to get practice settings", "practice_id", practiceID, "error", err)
		http.Error(w, `{"error": "internal server error"}`, http.StatusInternalServerError)
		return
	}

	if req.Name != nil {
		settings.Name = *req.Name
	}
	if req.Timezone != nil {
		settings.Timezone = *req.Timezone
	}
	if req.DisableSMS != nil {
		settings.DisableSMS = *req.DisableSMS
	}
	if req.Reminders != nil {
		settings.Reminders = *req.Reminders
	}
	if req.Grouping != nil {
		settings.Grouping = *req.Grouping
	}

	if err := h.store.Set(r.Context(), settings); err != nil {
		h.logger.Error("failed to save practice settings", "practice_id", practiceID, "error", err)
		http.Error(w, `{"error": "failed to save settings"}`, http.StatusInternalServerError)
		return
	}

	h.logger.Info("practice settings updated", "practice_id", practiceID)

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(settings); err != nil {
		h.logger.Error("failed to encode practice settings", "practice_id", practiceID, "error", err)
	}
}
