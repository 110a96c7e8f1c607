package client

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/alfredjeanlab/commentfeed/internal/events"
)

// maxSSELine bounds a single line of the event stream.
const maxSSELine = 1 << 20

// SubscribeInserts opens the server's SSE stream filtered to insert events.
// The first connection is made before returning so that no insert
// accepted after SubscribeInserts returns is missed. Dropped connections are
// retried with exponential backoff, resuming from the last seen event ID.
func (c *HTTPClient) SubscribeInserts(fn InsertHandler) (Subscription, error) {
	ctx, cancel := context.WithCancel(context.Background())
	s := &sseStream{client: c, fn: fn}
	body, err := s.connect(ctx)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("subscribing to inserts: %w", err)
	}
	go s.run(ctx, body)
	return newSubscription(cancel), nil
}

// sseStream is the state of one insert subscription across reconnects.
type sseStream struct {
	client *HTTPClient
	fn     InsertHandler
	lastID string
}

func (s *sseStream) connect(ctx context.Context) (io.ReadCloser, error) {
	path := "/v1/events/stream?topics=" + url.QueryEscape(events.TopicCommentCreated)
	req, err := s.client.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")
	if s.lastID != "" {
		req.Header.Set("Last-Event-ID", s.lastID)
	}

	resp, err := s.client.streamClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("opening event stream: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, decodeAPIError(resp.StatusCode, body)
	}
	return resp.Body, nil
}

func (s *sseStream) run(ctx context.Context, body io.ReadCloser) {
	b := reconnectBackOff()
	for {
		err := s.read(ctx, body)
		if ctx.Err() != nil {
			return
		}
		s.client.logger.Debug("event stream dropped", "error", err)

		for {
			if !sleepCtx(ctx, b.NextBackOff()) {
				return
			}
			body, err = s.connect(ctx)
			if err == nil {
				b.Reset()
				break
			}
			if ctx.Err() != nil {
				return
			}
			s.client.logger.Debug("event stream reconnect failed", "error", err)
		}
	}
}

// read consumes events until the stream ends. It always closes body.
func (s *sseStream) read(ctx context.Context, body io.ReadCloser) error {
	defer body.Close()

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), maxSSELine)

	var id, event string
	var data strings.Builder
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			if event != "" || data.Len() > 0 {
				s.dispatch(ctx, id, event, data.String())
			}
			id, event = "", ""
			data.Reset()
		case strings.HasPrefix(line, ":"):
			// keepalive
		default:
			field, value, _ := strings.Cut(line, ":")
			value = strings.TrimPrefix(value, " ")
			switch field {
			case "id":
				id = value
			case "event":
				event = value
			case "data":
				if data.Len() > 0 {
					data.WriteByte('\n')
				}
				data.WriteString(value)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	return io.EOF
}

func (s *sseStream) dispatch(ctx context.Context, id, event, data string) {
	if id != "" {
		s.lastID = id
	}
	if event != events.TopicCommentCreated || ctx.Err() != nil {
		return
	}
	created, err := events.DecodeCommentCreated([]byte(data))
	if err != nil {
		s.client.logger.Warn("skipping malformed insert event", "event_id", id, "error", err)
		return
	}
	s.fn(created.Comment)
}
