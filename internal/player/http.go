package player

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// HTTPController POSTs each command as JSON to a player webhook, for players
// that expose a local control endpoint instead of subscribing to a broker.
type HTTPController struct {
	url     string
	client  *http.Client
	timeout time.Duration
	logger  *slog.Logger
}

func NewHTTPController(url string, timeout time.Duration, logger *slog.Logger) *HTTPController {
	return &HTTPController{
		url:     url,
		client:  &http.Client{},
		timeout: timeout,
		logger:  logger.With("component", "http_player"),
	}
}

func (c *HTTPController) Send(ctx context.Context, cmd Command) error {
	payload, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("encode command: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("post command: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("post command: unexpected status code %d", resp.StatusCode)
	}

	c.logger.DebugContext(ctx, "command delivered", "type", cmd.Type, "schedule_id", cmd.ScheduleID, "duration", time.Since(start))
	return nil
}

// Fanout sends every command to each controller in order and returns the
// first error after trying them all.
type Fanout []Controller

func (f Fanout) Send(ctx context.Context, cmd Command) error {
	var firstErr error
	for _, c := range f {
		if err := c.Send(ctx, cmd); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
