package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/rafflewave/lottosync/internal/events"
	"github.com/rafflewave/lottosync/pkg/metrics"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1 << 20 // 1 MiB

	reconnectMin = time.Second
	reconnectMax = 30 * time.Second
)

// Message is the JSON envelope delivered on the push stream.
type Message struct {
	Stream string          `json:"stream"`
	Event  string          `json:"event"`
	Data   json.RawMessage `json:"data,omitempty"`
}

type controlMessage struct {
	Action  string   `json:"action"`
	Streams []string `json:"streams"`
}

// Handler consumes decoded domain events.
type Handler interface {
	HandleEvent(ctx context.Context, event events.Event)
}

// Config captures stream connection parameters.
type Config struct {
	URL     string
	Streams []string
	Header  func(ctx context.Context) (map[string]string, error)
}

// Stream maintains a websocket subscription to the pushed event feed and
// forwards decoded events to the handler. It reconnects with backoff until
// the context is cancelled; a failing handler never terminates the
// subscription.
type Stream struct {
	cfg     Config
	handler Handler
	log     *zap.Logger
}

// NewStream constructs a Stream.
func NewStream(cfg Config, handler Handler, log *zap.Logger) (*Stream, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, errors.New("realtime: stream url is required")
	}
	if handler == nil {
		return nil, errors.New("realtime: handler is required")
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Stream{cfg: cfg, handler: handler, log: log}, nil
}

// Run connects and consumes events until ctx is cancelled. Connection
// failures trigger reconnection with exponential backoff.
func (s *Stream) Run(ctx context.Context) {
	backoff := reconnectMin

	for {
		if ctx.Err() != nil {
			return
		}

		if err := s.connectAndConsume(ctx); err != nil && ctx.Err() == nil {
			s.log.Warn("stream disconnected", zap.Error(err), zap.Duration("retry_in", backoff))
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}

		backoff *= 2
		if backoff > reconnectMax {
			backoff = reconnectMax
		}
	}
}

func (s *Stream) connectAndConsume(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}

	var header map[string]string
	if s.cfg.Header != nil {
		h, err := s.cfg.Header(ctx)
		if err != nil {
			return err
		}
		header = h
	}

	httpHeader := make(map[string][]string, len(header))
	for k, v := range header {
		httpHeader[k] = []string{v}
	}

	conn, _, err := dialer.DialContext(ctx, s.cfg.URL, httpHeader)
	if err != nil {
		return err
	}
	defer conn.Close()

	if len(s.cfg.Streams) > 0 {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(controlMessage{Action: "subscribe", Streams: s.cfg.Streams}); err != nil {
			return err
		}
	}

	s.log.Info("stream connected", zap.String("url", s.cfg.URL))

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	pingCtx, stopPings := context.WithCancel(ctx)
	defer stopPings()
	go s.pingLoop(pingCtx, conn)

	for {
		var msg Message
		if err := conn.ReadJSON(&msg); err != nil {
			return err
		}

		if msg.Event == "" || strings.EqualFold(msg.Event, "pong") {
			continue
		}

		metrics.StreamEvents.WithLabelValues(msg.Event).Inc()

		event, err := events.Decode(msg.Event, msg.Data)
		if err != nil {
			s.log.Debug("ignoring undecodable event",
				zap.String("event", msg.Event),
				zap.Error(err))
			continue
		}

		s.handler.HandleEvent(ctx, event)
	}
}

func (s *Stream) pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
