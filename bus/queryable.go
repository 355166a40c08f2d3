package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

const queryBacklog = 256

// queryEnvelope is the payload of a query message.
type queryEnvelope struct {
	ID         string `json:"id"`
	Selector   string `json:"selector"`
	ReplyTopic string `json:"reply_topic"`
}

// Queryable receives the queries published under a key expression.
type Queryable struct {
	session *Session
	keyExpr string
	filter  string

	queries chan *Query
	done    chan struct{}
	once    sync.Once
}

func (s *Session) DeclareQueryable(ctx context.Context, keyExpr string) (*Queryable, error) {
	filter, err := ToTopicFilter(keyExpr)
	if err != nil {
		return nil, err
	}

	q := &Queryable{
		session: s,
		keyExpr: keyExpr,
		filter:  filter,
		queries: make(chan *Query, queryBacklog),
		done:    make(chan struct{}),
	}
	if err := s.subscribe(ctx, filter, q.onMessage); err != nil {
		return nil, err
	}
	s.logger.Debug("declared queryable", "keyexpr", keyExpr, "filter", filter)
	return q, nil
}

func (q *Queryable) KeyExpr() string {
	return q.keyExpr
}

func (q *Queryable) onMessage(_ mqtt.Client, msg mqtt.Message) {
	if msg.Retained() {
		q.session.logger.Debug("ignoring retained query", "topic", msg.Topic())
		return
	}

	query, err := q.session.decodeQuery(msg)
	if err != nil {
		q.session.logger.Warn("dropping malformed query", "topic", msg.Topic(), "error", err)
		return
	}

	select {
	case q.queries <- query:
	case <-q.done:
	}
}

// Recv blocks until a query arrives, the queryable is undeclared, or ctx ends.
func (q *Queryable) Recv(ctx context.Context) (*Query, error) {
	select {
	case query := <-q.queries:
		return query, nil
	case <-q.done:
		return nil, ErrUndeclared
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Undeclare stops delivery. Queries still buffered are dropped.
func (q *Queryable) Undeclare() error {
	var err error
	q.once.Do(func() {
		close(q.done)
		err = q.session.unsubscribe(q.filter)
	})
	return err
}

// Query is a single request that expects exactly one reply.
type Query struct {
	session    *Session
	id         string
	topic      string
	selector   string
	replyTopic string
	replied    atomic.Bool
}

func (s *Session) decodeQuery(msg mqtt.Message) (*Query, error) {
	var env queryEnvelope
	if err := json.Unmarshal(msg.Payload(), &env); err != nil {
		return nil, fmt.Errorf("decode query envelope: %w", err)
	}
	if env.ReplyTopic == "" {
		return nil, ErrNoReplyTopic
	}
	if env.Selector == "" {
		env.Selector = msg.Topic()
	}
	return &Query{
		session:    s,
		id:         env.ID,
		topic:      msg.Topic(),
		selector:   env.Selector,
		replyTopic: env.ReplyTopic,
	}, nil
}

func (q *Query) ID() string {
	return q.id
}

// Selector is the full address string of the query, parameters included.
func (q *Query) Selector() string {
	return q.selector
}

func (q *Query) KeyExpr() string {
	keyExpr, _ := splitSelector(q.selector)
	return keyExpr
}

func (q *Query) Parameters() string {
	_, params := splitSelector(q.selector)
	return params
}

// Reply sends payload back to the querier. A query accepts one reply.
func (q *Query) Reply(ctx context.Context, payload []byte) error {
	if !q.replied.CompareAndSwap(false, true) {
		return ErrAlreadyReplied
	}
	if err := await(ctx, q.session.client.Publish(q.replyTopic, 1, false, payload)); err != nil {
		return fmt.Errorf("reply to %s: %w", q.replyTopic, err)
	}
	return nil
}
