package hxdash

import (
	"fmt"
	"log/slog"
	"sync"
)

// Graph is the update graph of one dashboard: every registered handler,
// indexed by trigger channel. It implements Runtime.
//
// A Graph is built once at startup and then shared read-only by all
// sessions.
type Graph struct {
	mu        sync.RWMutex
	handlers  []Handler
	byTrigger map[Channel][]int
	writers   map[Channel]string
	logger    *slog.Logger
	maxRounds int
}

// DefaultMaxRounds bounds the rounds of one propagation.
const DefaultMaxRounds = 32

// NewGraph creates an empty update graph.
func NewGraph(logger *slog.Logger) *Graph {
	if logger == nil {
		logger = slog.Default()
	}
	return &Graph{
		byTrigger: make(map[Channel][]int),
		writers:   make(map[Channel]string),
		logger:    logger,
		maxRounds: DefaultMaxRounds,
	}
}

// Register adds a handler. Every output channel may have only one writer;
// a second handler writing the same channel is a configuration error.
func (g *Graph) Register(h Handler) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if h.Name == "" {
		h.Name = fmt.Sprintf("handler-%d", len(g.handlers))
	}
	if h.Func == nil {
		return configErrorf(h.Owner, "handler %q has no function", h.Name)
	}
	if len(h.Triggers) == 0 {
		return configErrorf(h.Owner, "handler %q has no trigger channels", h.Name)
	}
	if len(h.Outputs) == 0 {
		return configErrorf(h.Owner, "handler %q has no output channels", h.Name)
	}

	h.Triggers = dedupe(h.Triggers)
	h.Context = dedupe(h.Context)
	h.Outputs = dedupe(h.Outputs)

	for _, out := range h.Outputs {
		if prev, ok := g.writers[out]; ok {
			return configErrorf(h.Owner, "channel %s is written by both %q and %q", out, prev, h.Name)
		}
	}
	for _, out := range h.Outputs {
		g.writers[out] = h.Name
	}

	idx := len(g.handlers)
	g.handlers = append(g.handlers, h)
	for _, t := range h.Triggers {
		g.byTrigger[t] = append(g.byTrigger[t], idx)
	}
	g.logger.Debug("handler registered",
		slog.String("handler", h.Name),
		slog.Int("triggers", len(h.Triggers)),
		slog.Int("outputs", len(h.Outputs)))
	return nil
}

// Handlers returns a copy of the registered handlers in registration order.
func (g *Graph) Handlers() []Handler {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return append([]Handler(nil), g.handlers...)
}

// Writer returns the name of the handler writing ch.
func (g *Graph) Writer(ch Channel) (string, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	name, ok := g.writers[normalize(ch)]
	return name, ok
}

// triggered returns, in registration order, the handlers fired by any of
// the changed channels along with the subset of their triggers that fired.
func (g *Graph) triggered(changed []Channel) ([]Handler, [][]Channel) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	fired := make(map[int][]Channel)
	for _, ch := range changed {
		for _, idx := range g.byTrigger[ch] {
			fired[idx] = append(fired[idx], ch)
		}
	}
	var (
		hs   []Handler
		trig [][]Channel
	)
	for idx, h := range g.handlers {
		if chs, ok := fired[idx]; ok {
			hs = append(hs, h)
			trig = append(trig, chs)
		}
	}
	return hs, trig
}
