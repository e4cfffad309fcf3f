// Package player forwards playback decisions to whatever controls the screen.
package player

import (
	"context"
	"log/slog"
	"time"
)

type EventType string

const (
	EventPlay      EventType = "play"
	EventWindowEnd EventType = "window_end"
)

// Command is published on every edge transition. A play command names the
// playlist to start; a window_end command carries the post-actions of the
// schedule whose window just closed.
type Command struct {
	Type       EventType `json:"type"`
	ScheduleID string    `json:"schedule_id,omitempty"`
	Playlist   string    `json:"playlist,omitempty"`

	RevertToDefaultPlaylist bool `json:"revert_to_default_playlist,omitempty"`
	StopPlayback            bool `json:"stop_playback,omitempty"`
	CaptureScreenshot       bool `json:"capture_screenshot,omitempty"`

	At time.Time `json:"at"`
}

type Controller interface {
	Send(ctx context.Context, cmd Command) error
}

// LogController logs commands instead of sending them, used when no broker
// is configured.
type LogController struct {
	logger *slog.Logger
}

func NewLogController(logger *slog.Logger) *LogController {
	return &LogController{logger: logger.With("component", "player")}
}

func (c *LogController) Send(ctx context.Context, cmd Command) error {
	c.logger.InfoContext(ctx, "player command",
		"type", cmd.Type,
		"schedule_id", cmd.ScheduleID,
		"playlist", cmd.Playlist,
		"revert_to_default_playlist", cmd.RevertToDefaultPlaylist,
		"stop_playback", cmd.StopPlayback,
		"capture_screenshot", cmd.CaptureScreenshot,
	)
	return nil
}
