package feed

import (
	"context"
	"time"

	"github.com/gorilla/websocket"

	"github.com/aexis-io/aexis/core"
	"github.com/aexis-io/aexis/internal/logging"
)

// Subscriber consumes the authoritative agent feed over WebSocket and drives
// the event ingestor. Messages are applied to completion, one at a time, in
// arrival order; the next message is not read until the previous one has been
// fully applied.
type Subscriber struct {
	url    string
	ing    *core.Ingestor
	log    logging.Logger
	redial time.Duration
}

// NewSubscriber constructs a subscriber for the given feed URL.
func NewSubscriber(url string, ing *core.Ingestor, log logging.Logger, redial time.Duration) *Subscriber {
	if log == nil {
		log = logging.Noop()
	}
	if redial <= 0 {
		redial = 2 * time.Second
	}
	return &Subscriber{url: url, ing: ing, log: log, redial: redial}
}

// Run connects and consumes the feed until ctx is cancelled, redialing after
// connection loss. Staleness of the feed is tolerated indefinitely: while
// disconnected, agents simply stop correcting and drift by extrapolation.
func (s *Subscriber) Run(ctx context.Context) {
	for {
		if err := s.consume(ctx); err != nil {
			s.log.Warn(ctx, "feed connection lost",
				logging.String("url", s.url),
				logging.String("error", err.Error()))
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(s.redial):
		}
	}
}

func (s *Subscriber) consume(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return err
	}
	defer conn.Close()
	s.log.Info(ctx, "feed connected", logging.String("url", s.url))

	// Close the socket when ctx is cancelled so ReadMessage unblocks.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		if err := Dispatch(ctx, s.ing, raw); err != nil {
			// A single bad message must not take the stream down.
			s.log.Warn(ctx, "discarded feed message", logging.String("error", err.Error()))
		}
	}
}
