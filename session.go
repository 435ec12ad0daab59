package hxdash

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Session is the live channel state of one browser connected to a
// dashboard. Notifications are handled synchronously: Set runs every
// handler the change fires, applies their outputs, and repeats with the
// channels that changed until nothing changes.
//
// Ordering within a round follows handler registration order. A handler's
// inputs, including context-only channels, are read when it is invoked, so
// a handler sees the outputs of handlers that ran before it in the same
// round. Writes that leave a channel's value unchanged do not propagate.
//
// Handlers never abort propagation: panics and Fail results are logged and
// treated as NoUpdate.
type Session struct {
	g      *Graph
	mu     sync.Mutex
	state  map[Channel]any
	logger *slog.Logger
}

// Delta collects what one Init or Set changed.
type Delta struct {
	Changed []Channel
	Values  map[Channel]any
	Notices []Notice
}

func (d *Delta) record(ch Channel, v any) {
	if d.Values == nil {
		d.Values = make(map[Channel]any)
	}
	if _, seen := d.Values[ch]; !seen {
		d.Changed = append(d.Changed, ch)
	}
	d.Values[ch] = v
}

// Value returns the final value ch was set to.
func (d Delta) Value(ch Channel) (any, bool) {
	v, ok := d.Values[normalize(ch)]
	return v, ok
}

// Has reports whether ch changed.
func (d Delta) Has(ch Channel) bool {
	_, ok := d.Values[normalize(ch)]
	return ok
}

// NewSession starts a session whose channels hold the values of initial.
func (g *Graph) NewSession(initial StateDict) *Session {
	s := &Session{
		g:      g,
		state:  make(map[Channel]any, len(initial)),
		logger: g.logger,
	}
	for k, v := range initial {
		s.state[ParseKey(k)] = v
	}
	return s
}

// Init makes the initial call of every handler that does not opt out, then
// propagates whatever they changed.
func (s *Session) Init(ctx context.Context) (Delta, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		d       Delta
		changed []Channel
	)
	for _, h := range s.g.Handlers() {
		if h.SkipInitial {
			continue
		}
		changed = append(changed, s.run(ctx, h, nil, true, &d)...)
	}
	err := s.propagate(ctx, dedupe(changed), &d)
	return d, err
}

// Set assigns v to ch as a user interaction would and propagates the
// change. Setting a channel to its current value does nothing.
func (s *Session) Set(ctx context.Context, ch Channel, v any) (Delta, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch = normalize(ch)
	var d Delta
	if old, ok := s.state[ch]; ok && reflect.DeepEqual(old, v) {
		return d, nil
	}
	s.state[ch] = v
	d.record(ch, v)
	err := s.propagate(ctx, []Channel{ch}, &d)
	return d, err
}

// Get returns the current value of a channel.
func (s *Session) Get(ch Channel) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.state[normalize(ch)]
	return v, ok
}

// Snapshot captures the given channels into a flat state dict. Channels
// that were never set are omitted.
func (s *Session) Snapshot(tuples []Channel) StateDict {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(StateDict, len(tuples))
	for _, ch := range tuples {
		if v, ok := s.state[normalize(ch)]; ok {
			out.Set(ch, v)
		}
	}
	return out
}

// State returns every channel value held by the session.
func (s *Session) State() StateDict {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(StateDict, len(s.state))
	for ch, v := range s.state {
		out.Set(ch, v)
	}
	return out
}

func (s *Session) propagate(ctx context.Context, changed []Channel, d *Delta) error {
	for round := 0; len(changed) > 0; round++ {
		if round >= s.g.maxRounds {
			return fmt.Errorf("%w after %d rounds, still changing %v", ErrUpdateLoop, round, changed)
		}
		hs, fired := s.g.triggered(changed)
		var next []Channel
		for i, h := range hs {
			next = append(next, s.run(ctx, h, fired[i], false, d)...)
		}
		changed = dedupe(next)
	}
	return nil
}

// run invokes one handler against the current state and applies its result,
// returning the channels whose value changed.
func (s *Session) run(ctx context.Context, h Handler, fired []Channel, initial bool, d *Delta) []Channel {
	in := make(Values, len(h.Triggers)+len(h.Context))
	for _, ch := range h.inputs() {
		in[ch] = s.state[ch]
	}

	res := s.invoke(ctx, h, fired, initial, in)
	d.Notices = append(d.Notices, res.Notices()...)
	if res.IsNoUpdate() {
		return nil
	}

	var changed []Channel
	for _, ch := range res.Channels() {
		if !h.writes(ch) {
			s.logger.Warn("handler wrote undeclared channel, dropped",
				slog.String("handler", h.Name), slog.String("channel", ch.String()))
			continue
		}
		v, _ := res.Value(ch)
		if old, ok := s.state[ch]; ok && reflect.DeepEqual(old, v) {
			continue
		}
		s.state[ch] = v
		d.record(ch, v)
		changed = append(changed, ch)
	}
	return changed
}

func (s *Session) invoke(ctx context.Context, h Handler, fired []Channel, initial bool, in Values) (res Result) {
	ctx, span := tracer.Start(ctx, "hxdash.handler", trace.WithAttributes(
		attribute.String("hxdash.handler", h.Name),
		attribute.String("hxdash.owner", h.Owner),
		attribute.Bool("hxdash.initial", initial),
	))
	defer span.End()

	logger := s.logger.With(slog.String("handler", h.Name))
	defer func() {
		if p := recover(); p != nil {
			logger.Error("handler panicked", slog.Any("panic", p))
			span.SetStatus(codes.Error, fmt.Sprint(p))
			callbacksTotal.WithLabelValues(outcomeError).Inc()
			res = NoUpdate()
		}
	}()

	cc := &CallbackContext{
		ctx:       ctx,
		handler:   h.Name,
		triggered: fired,
		initial:   initial,
		logger:    logger,
	}
	res = h.Func(cc, in)

	if err := res.Err(); err != nil {
		logger.Warn("handler failed, outputs left unchanged", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		callbacksTotal.WithLabelValues(outcomeError).Inc()
		return NoUpdate()
	}
	if res.IsNoUpdate() {
		callbacksTotal.WithLabelValues(outcomeNoop).Inc()
	} else {
		callbacksTotal.WithLabelValues(outcomeUpdate).Inc()
	}
	return res
}
