// Package responder answers image generation queries on the bus.
package responder

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/V-Sekai-fire/forge/bus"
	"github.com/V-Sekai-fire/forge/codec"
	"github.com/V-Sekai-fire/forge/logutil"
	"github.com/V-Sekai-fire/forge/metrics"
	"github.com/V-Sekai-fire/forge/zimage"
)

const promptLogLength = 50

type Responder struct {
	generator zimage.Generator
	codec     codec.Codec
	metrics   *metrics.Metrics
	logger    *slog.Logger

	keyExpr   string
	tokenName string
}

type Option func(*Responder)

func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Responder) { r.metrics = m }
}

func WithLogger(l *slog.Logger) Option {
	return func(r *Responder) { r.logger = l }
}

func New(gen zimage.Generator, c codec.Codec, opts ...Option) *Responder {
	r := &Responder{
		generator: gen,
		codec:     c,
		logger:    slog.Default(),
		keyExpr:   zimage.GenerateKeyExpr,
		tokenName: zimage.LivelinessToken,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Serve declares the liveliness token and the queryable on s and answers
// queries until ctx is done. Each query is handled on its own goroutine.
// Before returning, Serve waits for in-flight queries to reply and then
// undeclares what it declared.
func (r *Responder) Serve(ctx context.Context, s *bus.Session) error {
	token, err := s.DeclareLivelinessToken(ctx, r.tokenName)
	if err != nil {
		return err
	}
	defer func() {
		if err := token.Undeclare(context.WithoutCancel(ctx)); err != nil {
			r.logger.Warn("failed to undeclare liveliness token", "token", r.tokenName, "error", err)
		}
	}()

	queryable, err := s.DeclareQueryable(ctx, r.keyExpr)
	if err != nil {
		return err
	}
	defer queryable.Undeclare()

	r.logger.Info("inference service started", "keyexpr", r.keyExpr, "token", r.tokenName, "encoding", r.codec.Name(), "session", s.ID())

	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		query, err := queryable.Recv(ctx)
		if err != nil {
			if ctx.Err() != nil {
				r.logger.Info("inference service stopping")
				return nil
			}
			return err
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			r.serveQuery(context.WithoutCancel(ctx), query)
		}()
	}
}

func (r *Responder) serveQuery(ctx context.Context, q *bus.Query) {
	start := time.Now()
	payload, resp, err := r.Respond(ctx, q.Selector())
	r.metrics.ObserveRequest(resp.Status, time.Since(start))
	if err != nil {
		r.metrics.ObserveReplyFailure()
		r.logger.Error("failed to encode reply", "query", q.ID(), "error", err)
		return
	}

	logutil.Trace("sending reply", "query", q.ID(), "status", resp.Status, "bytes", len(payload))
	if err := q.Reply(ctx, payload); err != nil {
		r.metrics.ObserveReplyFailure()
		r.logger.Error("failed to send reply", "query", q.ID(), "error", err)
	}
}

// Respond handles one selector and returns the encoded reply together with
// the response it encodes.
func (r *Responder) Respond(ctx context.Context, selector string) ([]byte, zimage.GenerationResponse, error) {
	resp := r.Handle(ctx, selector)
	payload, err := r.codec.Encode(resp)
	return payload, resp, err
}

// Handle turns a selector into a response. It never fails: every problem
// becomes an error response.
func (r *Responder) Handle(ctx context.Context, selector string) zimage.GenerationResponse {
	req, err := zimage.ParseSelector(selector)
	if err != nil {
		if errors.Is(err, zimage.ErrInvalidRequestFormat) {
			r.logger.Debug("rejecting query without parameters", "selector", selector)
			return zimage.Failure(zimage.ReasonInvalidFormat)
		}
		r.logger.Warn("rejecting query with invalid parameters", "selector", selector, "error", err)
		return zimage.Failure(err.Error())
	}

	r.logger.Info("received inference request", "prompt", truncate(req.Prompt, promptLogLength), "width", req.Width, "height", req.Height)

	outputPath, err := r.generator.Generate(ctx, req)
	if err != nil {
		r.logger.Error("generation failed", "error", err)
		return zimage.Failure(err.Error())
	}
	return zimage.Success(outputPath)
}

// truncate shortens s to at most n runes without splitting a character.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	var size, i int
	for count := 0; count < n && i < len(s); count++ {
		_, size = utf8.DecodeRuneInString(s[i:])
		i += size
	}
	return s[:i] + "..."
}
