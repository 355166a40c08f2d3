// Package bus implements a small query/liveliness session on top of MQTT.
//
// A Session wraps one MQTT client. Liveliness tokens are retained markers
// under "@liveliness/", queryables are topic subscriptions, and queries carry
// a JSON envelope naming the topic their single reply is published on.
package bus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
)

const (
	livelinessPrefix = "@liveliness/"
	replyPrefix      = "@reply/"

	defaultConnectTimeout = 10 * time.Second
	unsubscribeTimeout    = 5 * time.Second
)

// Config describes how a Session reaches the broker.
type Config struct {
	Broker         string
	ClientIDPrefix string
	ConnectTimeout time.Duration
	// WillToken names a liveliness token the broker clears on behalf of the
	// session if the connection drops without a clean Close.
	WillToken string
	Logger    *slog.Logger
}

type Session struct {
	id       string
	clientID string
	client   mqtt.Client
	logger   *slog.Logger

	mu     sync.Mutex
	subs   map[string]mqtt.MessageHandler
	tokens map[string]*LivelinessToken
	closed bool
}

// Open connects a new session. It fails if the broker cannot be reached
// within cfg.ConnectTimeout; there is no retry.
func Open(ctx context.Context, cfg Config) (*Session, error) {
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = defaultConnectTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	id := uuid.New().String()
	s := &Session{
		id:       id,
		clientID: cfg.ClientIDPrefix + id,
		logger:   cfg.Logger,
		subs:     make(map[string]mqtt.MessageHandler),
		tokens:   make(map[string]*LivelinessToken),
	}

	opts := mqtt.NewClientOptions().AddBroker(cfg.Broker)
	opts.SetClientID(s.clientID)
	opts.SetAutoReconnect(true)
	opts.SetCleanSession(true)
	opts.SetConnectTimeout(cfg.ConnectTimeout)
	if cfg.WillToken != "" {
		opts.SetBinaryWill(livelinessTopic(cfg.WillToken), []byte{}, 1, true)
	}
	opts.SetOnConnectHandler(s.onConnect)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		s.logger.Warn("bus connection lost", "error", err)
	})

	s.client = mqtt.NewClient(opts)

	cctx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()
	if err := await(cctx, s.client.Connect()); err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			err = ErrConnectTimeout
		}
		return nil, fmt.Errorf("connect to %s: %w", cfg.Broker, err)
	}
	return s, nil
}

func (s *Session) ID() string {
	return s.id
}

// ClientID is the MQTT client identifier the session connects with.
func (s *Session) ClientID() string {
	return s.clientID
}

func (s *Session) IsConnected() bool {
	return s.client.IsConnected()
}

// onConnect replays every declaration; the broker forgets them between
// connections because sessions are clean.
func (s *Session) onConnect(c mqtt.Client) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.logger.Info("connected to bus", "session", s.id, "subscriptions", len(s.subs), "tokens", len(s.tokens))
	for filter, handler := range s.subs {
		c.Subscribe(filter, 1, handler)
	}
	for name := range s.tokens {
		c.Publish(livelinessTopic(name), 1, true, []byte(s.id))
	}
}

// Close undeclares the remaining liveliness tokens and disconnects.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	tokens := make([]*LivelinessToken, 0, len(s.tokens))
	for _, t := range s.tokens {
		tokens = append(tokens, t)
	}
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), unsubscribeTimeout)
	defer cancel()

	var errs []error
	for _, t := range tokens {
		errs = append(errs, t.Undeclare(ctx))
	}
	s.client.Disconnect(250)
	return errors.Join(errs...)
}

func (s *Session) subscribe(ctx context.Context, filter string, handler mqtt.MessageHandler) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if _, ok := s.subs[filter]; ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s is already declared on this session", ErrInvalidKeyExpr, filter)
	}
	s.subs[filter] = handler
	s.mu.Unlock()

	if err := await(ctx, s.client.Subscribe(filter, 1, handler)); err != nil {
		s.mu.Lock()
		delete(s.subs, filter)
		s.mu.Unlock()
		return fmt.Errorf("subscribe %s: %w", filter, err)
	}
	return nil
}

func (s *Session) unsubscribe(filter string) error {
	s.mu.Lock()
	delete(s.subs, filter)
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), unsubscribeTimeout)
	defer cancel()
	if err := await(ctx, s.client.Unsubscribe(filter)); err != nil {
		return fmt.Errorf("unsubscribe %s: %w", filter, err)
	}
	return nil
}

// Get publishes a query for selector and waits for its single reply.
func (s *Session) Get(ctx context.Context, selector string) ([]byte, error) {
	keyExpr, _ := splitSelector(selector)
	topic, err := toTopic(keyExpr)
	if err != nil {
		return nil, err
	}

	id := uuid.New().String()
	replyTopic := replyPrefix + s.id + "/" + id

	replies := make(chan []byte, 1)
	err = s.subscribe(ctx, replyTopic, func(_ mqtt.Client, msg mqtt.Message) {
		select {
		case replies <- msg.Payload():
		default:
		}
	})
	if err != nil {
		return nil, err
	}
	closer := s.closer(replyTopic)
	defer closer.Close()

	payload, err := json.Marshal(queryEnvelope{ID: id, Selector: selector, ReplyTopic: replyTopic})
	if err != nil {
		return nil, err
	}
	if err := await(ctx, s.client.Publish(topic, 1, false, payload)); err != nil {
		return nil, fmt.Errorf("publish query on %s: %w", topic, err)
	}

	select {
	case reply := <-replies:
		return reply, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *Session) closer(filter string) CloserFunc {
	var once sync.Once
	return func() error {
		var err error
		once.Do(func() {
			err = s.unsubscribe(filter)
		})
		return err
	}
}

// await waits for an MQTT token to complete or ctx to end.
func await(ctx context.Context, t mqtt.Token) error {
	select {
	case <-t.Done():
		return t.Error()
	case <-ctx.Done():
		return ctx.Err()
	}
}

func livelinessTopic(name string) string {
	return livelinessPrefix + name
}
