// Package handlers exposes the reminder subsystem over HTTP: reminder and
// item queries, item requeueing and on-demand pipeline runs.
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/clinicware/vet-reminders/internal/reminder"
	"github.com/clinicware/vet-reminders/pkg/logging"
)

// Store is the query surface the reminder endpoints need.
type Store interface {
	InProgressReminders(ctx context.Context, patientID uuid.UUID) ([]*reminder.Reminder, error)
	DueItems(ctx context.Context, q reminder.DueItemQuery, offset, limit int) ([]*reminder.ItemRow, error)
	ItemCounts(ctx context.Context) (map[reminder.ItemKind]map[reminder.ItemStatus]int, error)
	MarkItemPending(ctx context.Context, id uuid.UUID) error
}

// Runner triggers one pass of the reminder pipeline.
type Runner interface {
	Run(ctx context.Context) error
}

// ReminderHandler provides HTTP endpoints for the reminder subsystem.
type ReminderHandler struct {
	store  Store
	runner Runner
	logger *logging.Logger
}

// NewReminderHandler creates a reminder HTTP handler.
func NewReminderHandler(store Store, runner Runner, logger *logging.Logger) *ReminderHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &ReminderHandler{store: store, runner: runner, logger: logger}
}

// Routes returns a chi router with the reminder admin routes.
func (h *ReminderHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/patients/{patientID}/reminders", h.ListPatientReminders)
	r.Get("/items", h.ListDueItems)
	r.Get("/stats", h.Stats)
	r.Post("/items/{itemID}/resend", h.ResendItem)
	r.Post("/runs", h.TriggerRun)
	return r
}

type itemView struct {
	ID       uuid.UUID `json:"id"`
	Kind     string    `json:"kind"`
	SendFrom time.Time `json:"send_from"`
	DueDate  time.Time `json:"due_date"`
	Count    int       `json:"count"`
	Status   string    `json:"status"`
	Error    string    `json:"error,omitempty"`
}

type reminderView struct {
	ID            uuid.UUID  `json:"id"`
	PatientID     uuid.UUID  `json:"patient_id"`
	TypeID        uuid.UUID  `json:"type_id"`
	DueDate       time.Time  `json:"due_date"`
	FirstDueDate  time.Time  `json:"first_due_date"`
	ReminderCount int        `json:"reminder_count"`
	Status        string     `json:"status"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
	Items         []itemView `json:"items"`
}

func viewOf(r *reminder.Reminder) reminderView {
	v := reminderView{
		ID:            r.ID,
		PatientID:     r.PatientID,
		TypeID:        r.TypeID,
		DueDate:       r.DueDate,
		FirstDueDate:  r.FirstDueDate,
		ReminderCount: r.ReminderCount,
		Status:        string(r.Status),
		CompletedAt:   r.CompletedAt,
		Items:         []itemView{},
	}
	for _, item := range r.Items {
		v.Items = append(v.Items, itemView{
			ID:       item.ID,
			Kind:     string(item.Kind),
			SendFrom: item.SendFrom,
			DueDate:  item.DueDate,
			Count:    item.Count,
			Status:   string(item.Status),
			Error:    item.Error,
		})
	}
	return v
}

// ListPatientReminders returns a patient's in-progress reminders.
// GET /admin/reminders/patients/{patientID}/reminders
func (h *ReminderHandler) ListPatientReminders(w http.ResponseWriter, r *http.Request) {
	patientID, err := uuid.Parse(chi.URLParam(r, "patientID"))
	if err != nil {
		http.Error(w, `{"error": "invalid patient id"}`, http.StatusBadRequest)
		return
	}
	reminders, err := h.store.InProgressReminders(r.Context(), patientID)
	if err != nil {
		h.logger.Error("failed to list patient reminders", "patient_id", patientID, "error", err)
		http.Error(w, `{"error": "internal server error"}`, http.StatusInternalServerError)
		return
	}
	views := []reminderView{}
	for _, rem := range reminders {
		views = append(views, viewOf(rem))
	}
	writeJSON(w, h.logger, map[string]any{"reminders": views})
}

// ListDueItems returns one page of pending items, optionally filtered by
// kind.
// GET /admin/reminders/items?kind=EMAIL&offset=0&limit=50
func (h *ReminderHandler) ListDueItems(w http.ResponseWriter, r *http.Request) {
	q := reminder.DueItemQuery{}
	if kind := r.URL.Query().Get("kind"); kind != "" {
		q.Kinds = []reminder.ItemKind{reminder.ItemKind(kind)}
	}
	offset := intParam(r, "offset", 0)
	limit := intParam(r, "limit", 50)
	rows, err := h.store.DueItems(r.Context(), q, offset, limit)
	if err != nil {
		h.logger.Error("failed to list due items", "error", err)
		http.Error(w, `{"error": "internal server error"}`, http.StatusInternalServerError)
		return
	}
	type dueItemView struct {
		itemView
		ReminderID  uuid.UUID `json:"reminder_id"`
		PatientName string    `json:"patient_name,omitempty"`
	}
	views := []dueItemView{}
	for _, row := range rows {
		v := dueItemView{
			itemView: itemView{
				ID:       row.Item.ID,
				Kind:     string(row.Item.Kind),
				SendFrom: row.Item.SendFrom,
				DueDate:  row.Item.DueDate,
				Count:    row.Item.Count,
				Status:   string(row.Item.Status),
				Error:    row.Item.Error,
			},
			ReminderID: row.Reminder.ID,
		}
		if row.Patient != nil {
			v.PatientName = row.Patient.Name
		}
		views = append(views, v)
	}
	writeJSON(w, h.logger, map[string]any{"items": views, "offset": offset, "limit": limit})
}

// Stats returns item counts per kind and status.
// GET /admin/reminders/stats
func (h *ReminderHandler) Stats(w http.ResponseWriter, r *http.Request) {
	counts, err := h.store.ItemCounts(r.Context())
	if err != nil {
		h.logger.Error("failed to load item counts", "error", err)
		http.Error(w, `{"error": "internal server error"}`, http.StatusInternalServerError)
		return
	}
	out := map[string]map[string]int{}
	for kind, byStatus := range counts {
		out[string(kind)] = map[string]int{}
		for status, n := range byStatus {
			out[string(kind)][string(status)] = n
		}
	}
	writeJSON(w, h.logger, map[string]any{"items": out})
}

// ResendItem requeues a cancelled or errored item.
// POST /admin/reminders/items/{itemID}/resend
func (h *ReminderHandler) ResendItem(w http.ResponseWriter, r *http.Request) {
	itemID, err := uuid.Parse(chi.URLParam(r, "itemID"))
	if err != nil {
		http.Error(w, `{"error": "invalid item id"}`, http.StatusBadRequest)
		return
	}
	if err := h.store.MarkItemPending(r.Context(), itemID); err != nil {
		h.logger.Error("failed to requeue item", "item_id", itemID, "error", err)
		http.Error(w, `{"error": "item cannot be requeued"}`, http.StatusConflict)
		return
	}
	h.logger.Info("reminder item requeued", "item_id", itemID)
	writeJSON(w, h.logger, map[string]string{"status": "pending"})
}

// TriggerRun runs one evaluate-and-dispatch pass synchronously.
// POST /admin/reminders/runs
func (h *ReminderHandler) TriggerRun(w http.ResponseWriter, r *http.Request) {
	if err := h.runner.Run(r.Context()); err != nil {
		h.logger.Error("reminder run failed", "error", err)
		http.Error(w, `{"error": "run failed"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, h.logger, map[string]string{"status": "completed"})
}

func intParam(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}

func writeJSON(w http.ResponseWriter, logger *logging.Logger, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("failed to encode response", "error", err)
	}
}
