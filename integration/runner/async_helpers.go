package runner

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/jwebster45206/lifequest/internal/handlers"
	"github.com/jwebster45206/lifequest/internal/services/events"
	"github.com/jwebster45206/lifequest/pkg/chat"
	"github.com/jwebster45206/lifequest/pkg/game"
)

// sseStream reads "event:"/"data:" frames from an open stream.
type sseStream struct {
	body   io.ReadCloser
	reader *bufio.Reader
}

func (s *sseStream) next() (string, string, error) {
	var name, data string
	for {
		line, err := s.reader.ReadString('\n')
		if err != nil {
			return "", "", err
		}
		line = strings.TrimRight(line, "\r\n")
		switch {
		case strings.HasPrefix(line, "event: "):
			name = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			data = strings.TrimPrefix(line, "data: ")
		case line == "" && name != "":
			return name, data, nil
		}
	}
}

// openEvents subscribes to the player's stream and waits for the
// "connected" frame so nothing published afterwards is missed.
func (r *Runner) openEvents(ctx context.Context, playerID string) (*sseStream, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/v1/players/%s/events", r.BaseURL, playerID), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create SSE request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")

	// The shared client has a timeout that would cut the stream.
	resp, err := (&http.Client{Transport: r.Client.Transport}).Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to SSE: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		return nil, fmt.Errorf("SSE connection failed with status %d: %s", resp.StatusCode, string(body))
	}

	s := &sseStream{body: resp.Body, reader: bufio.NewReader(resp.Body)}
	name, _, err := s.next()
	if err != nil {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("failed to read SSE greeting: %w", err)
	}
	if name != "connected" {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("unexpected first SSE event %q", name)
	}
	return s, nil
}

// postEvent queues an inbound event and returns its request id.
func (r *Runner) postEvent(ctx context.Context, ev game.InboundEvent) (string, error) {
	body, err := json.Marshal(ev)
	if err != nil {
		return "", fmt.Errorf("failed to marshal event: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.BaseURL+"/v1/events", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create event request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send event: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusAccepted {
		data, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("events endpoint returned %d (expected 202): %s", resp.StatusCode, string(data))
	}
	var ack handlers.IngestResponse
	if err := json.NewDecoder(resp.Body).Decode(&ack); err != nil {
		return "", fmt.Errorf("failed to parse event response: %w", err)
	}
	return ack.RequestID, nil
}

// runAsync sends the turn through the queue and waits for the worker to
// report it finished.
func (r *Runner) runAsync(ctx context.Context, turn chat.TurnRequest) (game.Result, error) {
	stream, err := r.openEvents(ctx, turn.PlayerID)
	if err != nil {
		return game.Result{}, err
	}
	defer func() { _ = stream.body.Close() }()

	// Closing the body unblocks the reader when ctx ends.
	stop := context.AfterFunc(ctx, func() { _ = stream.body.Close() })
	defer stop()

	ev := game.InboundEvent{
		PlayerID:    turn.PlayerID,
		DisplayName: turn.DisplayName,
		Kind:        game.EventText,
		Text:        turn.Message,
	}
	if turn.Postback != "" {
		ev.Kind = game.EventPostback
		ev.Text = ""
		ev.Postback = turn.Postback
	}
	requestID, err := r.postEvent(ctx, ev)
	if err != nil {
		return game.Result{}, err
	}

	for {
		name, data, err := stream.next()
		if err != nil {
			if ctx.Err() != nil {
				return game.Result{}, fmt.Errorf("timed out waiting for request %s", requestID)
			}
			return game.Result{}, fmt.Errorf("error reading SSE stream: %w", err)
		}
		if name != string(events.EventTypeRequestCompleted) && name != string(events.EventTypeRequestFailed) {
			continue
		}
		var event events.Event
		if err := json.Unmarshal([]byte(data), &event); err != nil {
			return game.Result{}, fmt.Errorf("failed to parse event: %w", err)
		}
		if event.RequestID != requestID {
			continue
		}
		if event.Result == nil {
			return game.Result{}, fmt.Errorf("request %s finished without a result: %s", requestID, event.Error)
		}
		return *event.Result, nil
	}
}
