package bus

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// LivelinessToken is a retained presence marker owned by a session.
type LivelinessToken struct {
	session *Session
	name    string
	once    sync.Once
}

// DeclareLivelinessToken announces name for as long as the token is declared.
func (s *Session) DeclareLivelinessToken(ctx context.Context, name string) (*LivelinessToken, error) {
	if _, err := toTopic(name); err != nil {
		return nil, err
	}

	t := &LivelinessToken{session: s, name: name}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	s.tokens[name] = t
	s.mu.Unlock()

	if err := await(ctx, s.client.Publish(livelinessTopic(name), 1, true, []byte(s.id))); err != nil {
		s.mu.Lock()
		delete(s.tokens, name)
		s.mu.Unlock()
		return nil, fmt.Errorf("declare liveliness token %s: %w", name, err)
	}
	s.logger.Debug("declared liveliness token", "token", name)
	return t, nil
}

func (t *LivelinessToken) Name() string {
	return t.name
}

// Undeclare clears the retained marker. Only the first call has an effect.
func (t *LivelinessToken) Undeclare(ctx context.Context) error {
	var err error
	t.once.Do(func() {
		s := t.session
		s.mu.Lock()
		delete(s.tokens, t.name)
		s.mu.Unlock()

		if perr := await(ctx, s.client.Publish(livelinessTopic(t.name), 1, true, []byte{})); perr != nil {
			err = fmt.Errorf("undeclare liveliness token %s: %w", t.name, perr)
			return
		}
		s.logger.Debug("undeclared liveliness token", "token", t.name)
	})
	return err
}

// WatchLiveliness calls fn for every token matching keyExpr as it appears
// (alive) or disappears. Tokens already declared are reported right away.
func (s *Session) WatchLiveliness(ctx context.Context, keyExpr string, fn func(name string, alive bool)) (io.Closer, error) {
	filter, err := ToTopicFilter(keyExpr)
	if err != nil {
		return nil, err
	}
	filter = livelinessTopic(filter)

	err = s.subscribe(ctx, filter, func(_ mqtt.Client, msg mqtt.Message) {
		fn(strings.TrimPrefix(msg.Topic(), livelinessPrefix), len(msg.Payload()) > 0)
	})
	if err != nil {
		return nil, err
	}
	return s.closer(filter), nil
}
