package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/ErlanBelekov/signage-scheduler/internal/domain"
	"github.com/gin-gonic/gin"
)

type activeResolver interface {
	ActiveCandidates(ctx context.Context, at time.Time) ([]domain.Schedule, error)
	Now() time.Time
}

type PlaybackHandler struct {
	resolver        activeResolver
	defaultPlaylist string
	logger          *slog.Logger
}

func NewPlaybackHandler(resolver activeResolver, defaultPlaylist string, logger *slog.Logger) *PlaybackHandler {
	return &PlaybackHandler{
		resolver:        resolver,
		defaultPlaylist: defaultPlaylist,
		logger:          logger.With("component", "playback_handler"),
	}
}

type activeResponse struct {
	At         time.Time         `json:"at"`
	Schedule   *domain.Schedule  `json:"schedule"`
	Playlist   string            `json:"playlist"`
	Candidates []domain.Schedule `json:"candidates"`
}

// GET /playback/active?at=RFC3339
// With no winner, schedule is null and playlist is the default playlist.
// candidates lists every eligible schedule, winner first.
func (h *PlaybackHandler) Active(c *gin.Context) {
	at := h.resolver.Now()
	if raw := c.Query("at"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			invalid(c, map[string]string{"at": "must be an RFC3339 timestamp"})
			return
		}
		at = t
	}

	candidates, err := h.resolver.ActiveCandidates(c.Request.Context(), at)
	if err != nil {
		h.logger.ErrorContext(c.Request.Context(), "resolve active schedule", "error", err)
		fail(c, http.StatusInternalServerError, errInternalServer)
		return
	}

	resp := activeResponse{At: at, Playlist: h.defaultPlaylist, Candidates: []domain.Schedule{}}
	if len(candidates) > 0 {
		resp.Candidates = candidates
		resp.Schedule = &candidates[0]
		resp.Playlist = candidates[0].Playlist
	}
	ok(c, http.StatusOK, resp, "")
}
