package push

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sync"
	"time"

	"nhooyr.io/websocket"

	"github.com/storyapp/storysync/internal/common"
	"github.com/storyapp/storysync/internal/logging"
	"github.com/storyapp/storysync/internal/models"
)

// envelope is the wire format spoken with the push gateway.
type envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

const (
	msgSubscribe    = "subscribe"
	msgSubscribed   = "subscribed"
	msgUnsubscribe  = "unsubscribe"
	msgUnsubscribed = "unsubscribed"
	msgPush         = "push"
	msgError        = "error"
)

// NotificationHandler receives each normalized incoming push.
type NotificationHandler func(ctx context.Context, n models.Notification)

// WSService is the websocket client for the push gateway. It implements
// Service for the subscription lifecycle and delivers incoming pushes to the
// registered handler.
type WSService struct {
	url     string
	log     logging.Logger
	handler NotificationHandler

	reconnectBaseDelay time.Duration
	reconnectMaxDelay  time.Duration
	maxReconnects      int

	mu               sync.Mutex
	conn             *websocket.Conn
	intentionalClose bool
	// pending holds waiters for one-shot replies (subscribed/unsubscribed),
	// keyed by message type.
	pending map[string]chan envelope
}

type WSOption func(*WSService)

func WithWSLogger(log logging.Logger) WSOption {
	return func(s *WSService) { s.log = log }
}

// WithReconnect tunes the reconnect backoff after an unexpected disconnect.
func WithReconnect(baseDelay, maxDelay time.Duration, maxAttempts int) WSOption {
	return func(s *WSService) {
		s.reconnectBaseDelay = baseDelay
		s.reconnectMaxDelay = maxDelay
		s.maxReconnects = maxAttempts
	}
}

func NewWSService(url string, handler NotificationHandler, opts ...WSOption) *WSService {
	s := &WSService{
		url:                url,
		log:                logging.Nop(),
		handler:            handler,
		reconnectBaseDelay: time.Second,
		reconnectMaxDelay:  30 * time.Second,
		maxReconnects:      10,
		pending:            make(map[string]chan envelope),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Connect dials the gateway and starts the read loop. Calling Connect while
// connected is a no-op.
func (s *WSService) Connect(ctx context.Context) error {
	s.mu.Lock()
	if s.conn != nil {
		s.mu.Unlock()
		return nil
	}
	s.intentionalClose = false
	s.mu.Unlock()

	conn, _, err := websocket.Dial(ctx, s.url, nil)
	if err != nil {
		return fmt.Errorf("%w: dial push gateway: %v", common.ErrTransport, err)
	}

	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()

	go s.readLoop(context.WithoutCancel(ctx))
	return nil
}

// Close shuts the connection down for good; no reconnect is attempted.
func (s *WSService) Close() error {
	s.mu.Lock()
	s.intentionalClose = true
	conn := s.conn
	s.conn = nil
	s.mu.Unlock()

	if conn != nil {
		return conn.Close(websocket.StatusNormalClosure, "client shutdown")
	}
	return nil
}

// Subscribe asks the gateway to mint a subscription. Connects on demand.
func (s *WSService) Subscribe(ctx context.Context) (*models.PushSubscription, error) {
	reply, err := s.roundTrip(ctx, envelope{Type: msgSubscribe}, msgSubscribed)
	if err != nil {
		return nil, err
	}

	var sub models.PushSubscription
	if err := json.Unmarshal(reply.Payload, &sub); err != nil {
		return nil, fmt.Errorf("decode subscription: %w", err)
	}
	if sub.Endpoint == "" {
		return nil, fmt.Errorf("gateway returned subscription without endpoint")
	}
	return &sub, nil
}

// Unsubscribe revokes the subscription for endpoint.
func (s *WSService) Unsubscribe(ctx context.Context, endpoint string) error {
	payload, err := json.Marshal(map[string]string{"endpoint": endpoint})
	if err != nil {
		return err
	}
	_, err = s.roundTrip(ctx, envelope{Type: msgUnsubscribe, Payload: payload}, msgUnsubscribed)
	return err
}

// roundTrip sends msg and waits for the reply of type want.
func (s *WSService) roundTrip(ctx context.Context, msg envelope, want string) (envelope, error) {
	if err := s.Connect(ctx); err != nil {
		return envelope{}, err
	}

	ch := make(chan envelope, 1)
	s.mu.Lock()
	conn := s.conn
	s.pending[want] = ch
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.pending, want)
		s.mu.Unlock()
	}()

	if conn == nil {
		return envelope{}, fmt.Errorf("%w: push gateway connection lost", common.ErrTransport)
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return envelope{}, err
	}
	if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
		return envelope{}, fmt.Errorf("%w: write to push gateway: %v", common.ErrTransport, err)
	}

	select {
	case reply := <-ch:
		return reply, nil
	case <-ctx.Done():
		return envelope{}, ctx.Err()
	}
}

func (s *WSService) readLoop(ctx context.Context) {
	attempts := 0
	for {
		s.mu.Lock()
		conn := s.conn
		s.mu.Unlock()
		if conn == nil {
			return
		}

		_, data, err := conn.Read(ctx)
		if err != nil {
			s.mu.Lock()
			intentional := s.intentionalClose
			s.conn = nil
			s.mu.Unlock()
			if intentional {
				return
			}

			s.log.Warn(ctx, "push gateway connection lost", "error", err)
			if !s.reconnect(ctx, &attempts) {
				return
			}
			continue
		}
		attempts = 0

		var env envelope
		if json.Unmarshal(data, &env) != nil {
			continue
		}
		s.dispatch(ctx, env)
	}
}

func (s *WSService) dispatch(ctx context.Context, env envelope) {
	s.mu.Lock()
	waiter := s.pending[env.Type]
	s.mu.Unlock()
	if waiter != nil {
		select {
		case waiter <- env:
		default:
		}
		return
	}

	switch env.Type {
	case msgPush:
		if s.handler != nil {
			s.handler(ctx, models.ParsePushPayload(env.Payload))
		}
	case msgError:
		s.log.Warn(ctx, "push gateway reported error", "payload", string(env.Payload))
	}
}

// reconnect dials with exponential backoff. Reports whether the read loop
// should keep going.
func (s *WSService) reconnect(ctx context.Context, attempts *int) bool {
	for *attempts < s.maxReconnects {
		delay := time.Duration(math.Min(
			float64(s.reconnectBaseDelay)*math.Pow(2, float64(*attempts)),
			float64(s.reconnectMaxDelay),
		))
		*attempts++

		select {
		case <-ctx.Done():
			return false
		case <-time.After(delay):
		}

		conn, _, err := websocket.Dial(ctx, s.url, nil)
		if err != nil {
			s.log.Warn(ctx, "push gateway reconnect failed", "attempt", *attempts, "error", err)
			continue
		}

		s.mu.Lock()
		intentional := s.intentionalClose
		if intentional {
			s.mu.Unlock()
			conn.Close(websocket.StatusNormalClosure, "client shutdown")
			return false
		}
		s.conn = conn
		s.mu.Unlock()
		s.log.Info(ctx, "push gateway reconnected", "attempt", *attempts)
		return true
	}
	s.log.Error(ctx, "push gateway reconnect attempts exhausted")
	return false
}
