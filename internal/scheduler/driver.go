package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/ErlanBelekov/signage-scheduler/internal/domain"
	"github.com/ErlanBelekov/signage-scheduler/internal/engine"
	ctxlog "github.com/ErlanBelekov/signage-scheduler/internal/log"
	"github.com/ErlanBelekov/signage-scheduler/internal/metrics"
	"github.com/ErlanBelekov/signage-scheduler/internal/player"
	"github.com/ErlanBelekov/signage-scheduler/internal/repository"
	"github.com/ErlanBelekov/signage-scheduler/internal/requestid"
)

// ScheduleSource is the part of the schedule service the driver consumes.
type ScheduleSource interface {
	Now() time.Time
	ActiveSchedule(ctx context.Context, at time.Time) (*domain.Schedule, error)
	GetSchedule(ctx context.Context, id string) (domain.Schedule, error)
	RecordActivation(ctx context.Context, id string, at time.Time) (domain.Schedule, error)
}

// Driver polls the resolver and turns winner changes into player commands.
// Activations are recorded only on an edge transition, never per tick.
type Driver struct {
	source          ScheduleSource
	state           repository.DriverState
	player          player.Controller
	defaultPlaylist string
	interval        time.Duration
	logger          *slog.Logger

	sendAttempts int
	retryBase    time.Duration

	// synced is set once the player has been told what to play by this process.
	synced bool
}

type DriverOption func(*Driver)

// WithRetry sets how many times a player command is attempted and the base
// delay between attempts.
func WithRetry(attempts int, base time.Duration) DriverOption {
	return func(d *Driver) {
		d.sendAttempts = max(attempts, 1)
		d.retryBase = base
	}
}

func NewDriver(source ScheduleSource, state repository.DriverState, ctrl player.Controller, defaultPlaylist string, interval time.Duration, logger *slog.Logger, opts ...DriverOption) *Driver {
	d := &Driver{
		source:          source,
		state:           state,
		player:          ctrl,
		defaultPlaylist: defaultPlaylist,
		interval:        interval,
		logger:          logger.With("component", "driver"),
		sendAttempts:    3,
		retryBase:       500 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Start ticks immediately, then every interval, until ctx is cancelled.
func (d *Driver) Start(ctx context.Context) {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	d.logger.Info("driver started", "interval", d.interval, "default_playlist", d.defaultPlaylist)

	d.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			d.logger.Info("driver shut down")
			return
		case <-ticker.C:
			d.tick(ctx)
		}
	}
}

func (d *Driver) tick(ctx context.Context) {
	ctx = requestid.WithRequestID(ctx, requestid.New())
	if err := d.Tick(ctx); err != nil && ctx.Err() == nil {
		d.logger.ErrorContext(ctx, "driver tick", "error", err)
	}
}

// Tick runs one poll. It returns an error when the winner could not be
// resolved or announced; the transition is then retried on the next tick.
func (d *Driver) Tick(ctx context.Context) error {
	start := time.Now()
	defer func() { metrics.DriverTickDuration.Observe(time.Since(start).Seconds()) }()

	now := d.source.Now()
	winner, err := d.source.ActiveSchedule(ctx, now)
	if err != nil {
		return fmt.Errorf("resolve winner: %w", err)
	}
	prevID, err := d.state.LastWinner(ctx)
	if err != nil {
		return fmt.Errorf("load last winner: %w", err)
	}

	winnerID := ""
	if winner != nil {
		winnerID = winner.ID
	}
	if winnerID == prevID || (!d.synced && activatedThisWindow(winner, now)) {
		if d.synced {
			return nil
		}
		if err := d.resync(ctx, winner, now); err != nil {
			return err
		}
		if winnerID != prevID {
			if err := d.state.SetLastWinner(ctx, winnerID); err != nil {
				return fmt.Errorf("save last winner: %w", err)
			}
		}
		d.synced = true
		return nil
	}

	d.logger.InfoContext(ctx, "active schedule changed", "from", prevID, "to", winnerID, "at", now)

	if prevID != "" {
		d.endWindow(ctx, prevID, now)
	}

	if winner == nil {
		metrics.DriverActivePriority.Set(0)
		if d.defaultPlaylist != "" {
			if err := d.send(ctx, player.Command{Type: player.EventPlay, Playlist: d.defaultPlaylist, At: now}); err != nil {
				return err
			}
		}
	} else {
		if err := d.send(ctx, player.Command{Type: player.EventPlay, ScheduleID: winner.ID, Playlist: winner.Playlist, At: now}); err != nil {
			return err
		}
		metrics.DriverActivePriority.Set(float64(winner.Priority))
		if _, err := d.source.RecordActivation(ctx, winner.ID, now); err != nil {
			d.logger.ErrorContext(ctxlog.WithScheduleID(ctx, winner.ID), "record activation", "error", err)
		}
	}

	metrics.DriverTransitionsTotal.Inc()
	if err := d.state.SetLastWinner(ctx, winnerID); err != nil {
		return fmt.Errorf("save last winner: %w", err)
	}
	d.synced = true
	return nil
}

// resync re-announces the current winner after a restart without counting it
// as a new activation.
func (d *Driver) resync(ctx context.Context, winner *domain.Schedule, now time.Time) error {
	cmd := player.Command{Type: player.EventPlay, Playlist: d.defaultPlaylist, At: now}
	if winner != nil {
		cmd.ScheduleID, cmd.Playlist = winner.ID, winner.Playlist
		metrics.DriverActivePriority.Set(float64(winner.Priority))
	}
	if cmd.Playlist != "" {
		if err := d.send(ctx, cmd); err != nil {
			return err
		}
	}
	return nil
}

// activatedThisWindow reports whether s was already activated during the
// occurrence containing now, as after a restart that lost driver state.
func activatedThisWindow(s *domain.Schedule, now time.Time) bool {
	if s == nil || s.Metadata.LastRunAt == nil || !engine.IsActive(s.Recurrence, now) {
		return false
	}
	return !s.Metadata.LastRunAt.Before(engine.OccurrenceStart(s.Recurrence, now))
}

// endWindow announces the post-actions of the schedule that stopped winning.
// Nothing is sent while that schedule's own window is still open.
// A failure here is logged and does not hold back the next play command.
func (d *Driver) endWindow(ctx context.Context, prevID string, now time.Time) {
	ctx = ctxlog.WithScheduleID(ctx, prevID)

	prev, err := d.source.GetSchedule(ctx, prevID)
	if errors.Is(err, domain.ErrScheduleNotFound) {
		d.logger.InfoContext(ctx, "previous schedule deleted, skipping post-actions")
		return
	}
	if err != nil {
		d.logger.ErrorContext(ctx, "load previous schedule", "error", err)
		return
	}
	if prev.Enabled && engine.IsActive(prev.Recurrence, now) {
		d.logger.InfoContext(ctx, "previous schedule preempted, window still open")
		return
	}

	err = d.send(ctx, player.Command{
		Type:                    player.EventWindowEnd,
		ScheduleID:              prev.ID,
		Playlist:                prev.Playlist,
		RevertToDefaultPlaylist: prev.PostActions.RevertToDefaultPlaylist,
		StopPlayback:            prev.PostActions.StopPlayback,
		CaptureScreenshot:       prev.PostActions.CaptureScreenshot,
		At:                      now,
	})
	if err != nil {
		d.logger.ErrorContext(ctx, "send post-actions", "error", err)
	}
}

func (d *Driver) send(ctx context.Context, cmd player.Command) error {
	var err error
	for attempt := range d.sendAttempts {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(retryDelay(d.retryBase, attempt-1)):
			}
		}
		if err = d.player.Send(ctx, cmd); err == nil {
			return nil
		}
		d.logger.WarnContext(ctx, "player command failed",
			"type", cmd.Type,
			"attempt", attempt+1,
			"max_attempts", d.sendAttempts,
			"error", err,
		)
	}
	metrics.PlayerCommandFailuresTotal.WithLabelValues(string(cmd.Type)).Inc()
	return fmt.Errorf("send %s command: %w", cmd.Type, err)
}

// retryDelay doubles base per attempt, capped at 30s, with +/-25% jitter.
func retryDelay(base time.Duration, attempt int) time.Duration {
	if base <= 0 {
		return 0
	}
	delay := min(base<<attempt, 30*time.Second)
	if q := int64(delay / 2); q > 0 {
		delay += time.Duration(rand.Int64N(q)) - delay/4
	}
	return delay
}

// MemoryState keeps the last winner in process memory. After a restart the
// first tick is treated as a transition.
type MemoryState struct {
	mu sync.Mutex
	id string
}

func (s *MemoryState) LastWinner(_ context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id, nil
}

func (s *MemoryState) SetLastWinner(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.id = id
	return nil
}
