package room

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// envelope is the JSON wire format for room messages.
type envelope struct {
	Type     string          `json:"type"`
	Topic    string          `json:"topic,omitempty"`
	Payload  json.RawMessage `json:"payload,omitempty"`
	Audio    string          `json:"audio,omitempty"` // base64 PCM16
	Role     string          `json:"role,omitempty"`
	Text     string          `json:"text,omitempty"`
	Final    bool            `json:"final,omitempty"`
	State    string          `json:"state,omitempty"`
	Identity string          `json:"identity,omitempty"`
}

// Envelope types.
const (
	typeData        = "data"
	typeAudio       = "audio"
	typeMetadata    = "metadata"
	typeTranscript  = "transcript"
	typeParticipant = "participant_joined"
)

// Config holds room client configuration.
type Config struct {
	URL      string
	Token    string
	RoomName string
	Timeout  time.Duration
	Logger   *slog.Logger
}

// Option is a functional option for the room client.
type Option func(*Config)

// WithURL sets the room server websocket URL.
func WithURL(url string) Option {
	return func(c *Config) { c.URL = url }
}

// WithToken sets the room access token.
func WithToken(token string) Option {
	return func(c *Config) { c.Token = token }
}

// WithRoomName sets the room to join.
func WithRoomName(name string) Option {
	return func(c *Config) { c.RoomName = name }
}

// WithTimeout sets the dial timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Config) { c.Timeout = d }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Config) { c.Logger = l }
}

// Client is a websocket-backed Room.
type Client struct {
	config *Config
	logger *slog.Logger

	mu        sync.RWMutex
	conn      *websocket.Conn
	state     ConnectionState
	cancelCtx context.CancelFunc

	writeMu sync.Mutex

	// Callbacks
	onTranscript  func(role, text string, final bool)
	onData        func(topic string, payload []byte)
	onParticipant func(identity string)
	onError       func(err error)

	// Metrics
	messagesSent     atomic.Int64
	messagesReceived atomic.Int64
}

// NewClient creates a room client.
func NewClient(opts ...Option) (*Client, error) {
	cfg := &Config{
		Timeout: 10 * time.Second,
		Logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.URL == "" {
		return nil, ErrMissingURL
	}
	if cfg.Token == "" {
		return nil, ErrMissingToken
	}

	return &Client{
		config: cfg,
		logger: cfg.Logger.With("component", "room.client", "room", cfg.RoomName),
		state:  StateDisconnected,
	}, nil
}

// Connect joins the room over websocket.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.state == StateConnected {
		c.mu.Unlock()
		return ErrAlreadyConnected
	}
	c.state = StateConnecting
	c.mu.Unlock()

	url := fmt.Sprintf("%s?room=%s", c.config.URL, c.config.RoomName)

	headers := http.Header{}
	headers.Set("Authorization", "Bearer "+c.config.Token)

	dialer := websocket.Dialer{
		HandshakeTimeout: c.config.Timeout,
	}

	c.logger.Info("joining room")

	conn, resp, err := dialer.DialContext(ctx, url, headers)
	if err != nil {
		c.mu.Lock()
		c.state = StateDisconnected
		c.mu.Unlock()
		if resp != nil {
			return NewConnectionError(
				fmt.Sprintf("dial failed with status %d", resp.StatusCode),
				err,
				resp.StatusCode >= 500,
			)
		}
		return NewConnectionError("dial failed", err, true)
	}

	msgCtx, cancel := context.WithCancel(context.Background())

	c.mu.Lock()
	c.conn = conn
	c.state = StateConnected
	c.cancelCtx = cancel
	c.mu.Unlock()

	go c.readLoop(msgCtx)

	c.logger.Info("joined room")
	return nil
}

// Close leaves the room.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateDisconnected {
		return nil
	}

	if c.cancelCtx != nil {
		c.cancelCtx()
	}

	if c.conn != nil {
		c.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.conn.Close()
		c.conn = nil
	}

	c.state = StateDisconnected
	c.logger.Info("left room",
		"sent", c.messagesSent.Load(),
		"received", c.messagesReceived.Load(),
	)
	return nil
}

// IsConnected reports whether the room is live.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state == StateConnected
}

// Name returns the room name.
func (c *Client) Name() string {
	return c.config.RoomName
}

// PublishData sends a data message on a topic.
func (c *Client) PublishData(topic string, payload []byte) error {
	return c.send(envelope{Type: typeData, Topic: topic, Payload: payload})
}

// PublishAudio sends synthesized speech to the room.
func (c *Client) PublishAudio(audio []byte) error {
	return c.send(envelope{
		Type:  typeAudio,
		Audio: base64.StdEncoding.EncodeToString(audio),
	})
}

// SetMetadata publishes the agent state.
func (c *Client) SetMetadata(state string) error {
	return c.send(envelope{Type: typeMetadata, State: state})
}

// OnTranscript sets the transcript callback.
func (c *Client) OnTranscript(fn func(role, text string, final bool)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onTranscript = fn
}

// OnData sets the data message callback.
func (c *Client) OnData(fn func(topic string, payload []byte)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onData = fn
}

// OnParticipant sets the participant-joined callback.
func (c *Client) OnParticipant(fn func(identity string)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onParticipant = fn
}

// OnError sets the error callback.
func (c *Client) OnError(fn func(err error)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onError = fn
}

// send marshals and writes one envelope. Writes are serialized because
// the websocket connection allows a single writer.
func (c *Client) send(env envelope) error {
	c.mu.RLock()
	conn := c.conn
	connected := c.state == StateConnected
	c.mu.RUnlock()

	if !connected || conn == nil {
		return ErrNotConnected
	}

	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("room: marshal envelope: %w", err)
	}

	c.writeMu.Lock()
	err = conn.WriteMessage(websocket.TextMessage, data)
	c.writeMu.Unlock()

	if err != nil {
		return NewConnectionError("write failed", err, true)
	}
	c.messagesSent.Add(1)
	return nil
}

// readLoop dispatches incoming envelopes until the connection drops.
func (c *Client) readLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		c.mu.RLock()
		conn := c.conn
		c.mu.RUnlock()
		if conn == nil {
			return
		}

		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				c.logger.Warn("read failed, leaving room", "error", err)
				c.emitError(NewConnectionError("read failed", err, true))
			}
			return
		}
		c.messagesReceived.Add(1)

		var env envelope
		if err := json.Unmarshal(data, &env); err != nil {
			c.logger.Debug("skipping malformed envelope", "error", err)
			continue
		}

		c.dispatch(&env)
	}
}

func (c *Client) dispatch(env *envelope) {
	switch env.Type {
	case typeTranscript:
		c.emitTranscript(env.Role, env.Text, env.Final)
	case typeData:
		c.emitData(env.Topic, env.Payload)
	case typeParticipant:
		c.emitParticipant(env.Identity)
	default:
		c.logger.Debug("ignoring envelope", "type", env.Type)
	}
}

func (c *Client) emitTranscript(role, text string, final bool) {
	c.mu.RLock()
	fn := c.onTranscript
	c.mu.RUnlock()
	if fn != nil {
		fn(role, text, final)
	}
}

func (c *Client) emitData(topic string, payload []byte) {
	c.mu.RLock()
	fn := c.onData
	c.mu.RUnlock()
	if fn != nil {
		fn(topic, payload)
	}
}

func (c *Client) emitParticipant(identity string) {
	c.mu.RLock()
	fn := c.onParticipant
	c.mu.RUnlock()
	if fn != nil {
		fn(identity)
	}
}

func (c *Client) emitError(err error) {
	c.mu.RLock()
	fn := c.onError
	c.mu.RUnlock()
	if fn != nil {
		fn(err)
	}
}

// Verify Client implements Room at compile time.
var _ Room = (*Client)(nil)
