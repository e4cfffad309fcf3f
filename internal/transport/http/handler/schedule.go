package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/ErlanBelekov/signage-scheduler/internal/domain"
	ctxlog "github.com/ErlanBelekov/signage-scheduler/internal/log"
	"github.com/ErlanBelekov/signage-scheduler/internal/usecase"
	"github.com/gin-gonic/gin"
)

// scheduleUsecaser is the subset of ScheduleUsecase the handler needs.
type scheduleUsecaser interface {
	CreateSchedule(ctx context.Context, in usecase.ScheduleInput) (domain.Schedule, error)
	UpdateSchedule(ctx context.Context, id string, in usecase.ScheduleInput) (domain.Schedule, error)
	ToggleSchedule(ctx context.Context, id string) (domain.Schedule, error)
	DeleteSchedule(ctx context.Context, id string) error
	GetSchedule(ctx context.Context, id string) (domain.Schedule, error)
	ListSchedules(ctx context.Context, enabled *bool) ([]domain.Schedule, error)
	RecordActivation(ctx context.Context, id string, at time.Time) (domain.Schedule, error)
}

type ScheduleHandler struct {
	uc     scheduleUsecaser
	logger *slog.Logger
}

func NewScheduleHandler(uc scheduleUsecaser, logger *slog.Logger) *ScheduleHandler {
	return &ScheduleHandler{uc: uc, logger: logger.With("component", "schedule_handler")}
}

// dayValue accepts "mon", "Monday" or 1.
type dayValue string

func (d *dayValue) UnmarshalJSON(b []byte) error {
	var n int
	if err := json.Unmarshal(b, &n); err == nil {
		*d = dayValue(strconv.Itoa(n))
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("day must be a name or a number: %w", err)
	}
	*d = dayValue(s)
	return nil
}

type recurrenceRequest struct {
	Days      []dayValue `json:"days"`
	StartTime string     `json:"start_time"`
	EndTime   string     `json:"end_time"`
}

type scheduleRequest struct {
	Name             string              `json:"name"`
	Description      string              `json:"description"`
	Playlist         string              `json:"playlist"`
	Enabled          *bool               `json:"enabled"`
	Priority         *int                `json:"priority"`
	Recurrence       recurrenceRequest   `json:"recurrence"`
	ConflictBehavior string              `json:"conflict_behavior"`
	PostActions      *domain.PostActions `json:"post_actions"`
}

func (r scheduleRequest) input(createdBy string) usecase.ScheduleInput {
	days := make([]string, len(r.Recurrence.Days))
	for i, d := range r.Recurrence.Days {
		days[i] = string(d)
	}
	return usecase.ScheduleInput{
		Name:             r.Name,
		Description:      r.Description,
		Playlist:         r.Playlist,
		Enabled:          r.Enabled,
		Priority:         r.Priority,
		Days:             days,
		StartTime:        r.Recurrence.StartTime,
		EndTime:          r.Recurrence.EndTime,
		ConflictBehavior: r.ConflictBehavior,
		PostActions:      r.PostActions,
		CreatedBy:        createdBy,
	}
}

type activationRequest struct {
	At *time.Time `json:"at"`
}

// GET /schedules
func (h *ScheduleHandler) List(c *gin.Context) {
	var enabled *bool
	if raw, set := c.GetQuery("enabled"); set {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			invalid(c, map[string]string{"enabled": "must be true or false"})
			return
		}
		enabled = &v
	}

	schedules, err := h.uc.ListSchedules(c.Request.Context(), enabled)
	if err != nil {
		h.writeError(c, "list schedules", "", err)
		return
	}

	count := len(schedules)
	c.JSON(http.StatusOK, envelope{
		Success:   true,
		Data:      schedules,
		Count:     &count,
		Timestamp: time.Now(),
	})
}

// GET /schedules/:id
func (h *ScheduleHandler) GetByID(c *gin.Context) {
	id := c.Param("id")

	s, err := h.uc.GetSchedule(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, "get schedule", id, err)
		return
	}
	ok(c, http.StatusOK, s, "")
}

// POST /schedules
func (h *ScheduleHandler) Create(c *gin.Context) {
	var req scheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalid(c, map[string]string{"body": err.Error()})
		return
	}

	s, err := h.uc.CreateSchedule(c.Request.Context(), req.input(c.GetString("userID")))
	if err != nil {
		h.writeError(c, "create schedule", "", err)
		return
	}
	ok(c, http.StatusCreated, s, msgCreated)
}

// PUT /schedules/:id
func (h *ScheduleHandler) Update(c *gin.Context) {
	id := c.Param("id")

	var req scheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalid(c, map[string]string{"body": err.Error()})
		return
	}

	s, err := h.uc.UpdateSchedule(c.Request.Context(), id, req.input(""))
	if err != nil {
		h.writeError(c, "update schedule", id, err)
		return
	}
	ok(c, http.StatusOK, s, msgUpdated)
}

// PATCH /schedules/:id/toggle
func (h *ScheduleHandler) Toggle(c *gin.Context) {
	id := c.Param("id")

	s, err := h.uc.ToggleSchedule(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, "toggle schedule", id, err)
		return
	}
	ok(c, http.StatusOK, s, msgToggled)
}

// DELETE /schedules/:id
func (h *ScheduleHandler) Delete(c *gin.Context) {
	id := c.Param("id")

	if err := h.uc.DeleteSchedule(c.Request.Context(), id); err != nil {
		h.writeError(c, "delete schedule", id, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"id": id}, msgDeleted)
}

// POST /schedules/:id/activations
// The body is optional; without "at" the activation is stamped now.
func (h *ScheduleHandler) RecordActivation(c *gin.Context) {
	id := c.Param("id")

	var req activationRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			invalid(c, map[string]string{"body": err.Error()})
			return
		}
	}
	at := time.Now()
	if req.At != nil {
		at = *req.At
	}

	s, err := h.uc.RecordActivation(c.Request.Context(), id, at)
	if err != nil {
		h.writeError(c, "record activation", id, err)
		return
	}
	ok(c, http.StatusOK, s, msgActivated)
}

func (h *ScheduleHandler) writeError(c *gin.Context, op, id string, err error) {
	ctx := ctxlog.WithScheduleID(c.Request.Context(), id)
	var verr *domain.ValidationError
	var cerr *domain.ConflictError
	switch {
	case errors.As(err, &verr):
		invalid(c, verr.Fields)
	case errors.As(err, &cerr):
		c.JSON(http.StatusConflict, envelope{
			Success:   false,
			Message:   errConflicts,
			Conflicts: cerr.Conflicts,
			Timestamp: time.Now(),
		})
	case errors.Is(err, domain.ErrScheduleNotFound):
		fail(c, http.StatusNotFound, errScheduleNotFound+id)
	case errors.Is(err, domain.ErrPersistence):
		h.logger.ErrorContext(ctx, op, "error", err)
		fail(c, http.StatusInternalServerError, errSaveFailed)
	default:
		h.logger.ErrorContext(ctx, op, "error", err)
		fail(c, http.StatusInternalServerError, errInternalServer)
	}
}
