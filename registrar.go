package hxdash

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"
)

// Registrar brokers analytical artifacts between components and models.
// Each (model, dependency, label) artifact is computed on first use and
// served from memory afterwards. Entries are never evicted: models are
// immutable.
//
// Concurrent first requests for the same key are collapsed with
// singleflight. If two computations still race (a caller that gave up
// waiting, a retry after cancellation), LoadOrStore keeps the first stored
// value, so every caller converges on one cached artifact. Errors are not
// cached.
//
// Registrar is safe for concurrent use. Create one per dashboard or inject
// one per test.
type Registrar struct {
	cache  sync.Map // registrarKey -> any
	calls  sync.Map // registrarKey -> *atomic.Int64
	group  singleflight.Group
	logger *slog.Logger
}

type registrarKey struct {
	model string
	dep   string
	label string
}

func (k registrarKey) String() string {
	return k.model + "\x00" + k.dep + "\x00" + k.label
}

// RegistrarOption configures a Registrar.
type RegistrarOption func(*Registrar)

// WithRegistrarLogger sets the logger used for computation events.
func WithRegistrarLogger(l *slog.Logger) RegistrarOption {
	return func(r *Registrar) { r.logger = l }
}

// NewRegistrar creates an empty registrar.
func NewRegistrar(opts ...RegistrarOption) *Registrar {
	r := &Registrar{logger: slog.Default()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func keyFor(m Model, dep, label string) registrarKey {
	if !IsClassifier(m) {
		label = ""
	} else if label == "" {
		label = m.DefaultLabel()
	}
	return registrarKey{model: m.ID(), dep: dep, label: label}
}

// Ensure returns the artifact for dep under label, computing it through the
// model's accessor if it is not cached yet. A model without the accessor
// yields a CapabilityMissingError.
func (r *Registrar) Ensure(ctx context.Context, m Model, dep, label string) (any, error) {
	key := keyFor(m, dep, label)
	if v, ok := r.cache.Load(key); ok {
		recordHit(ctx, dep)
		return v, nil
	}

	acc, ok := m.Accessor(dep)
	if !ok {
		return nil, &CapabilityMissingError{Model: m.ID(), Dependency: dep}
	}

	v, err, _ := r.group.Do(key.String(), func() (any, error) {
		if v, ok := r.cache.Load(key); ok {
			return v, nil
		}
		start := time.Now()
		r.counter(key).Add(1)
		v, err := acc(ctx, key.label)
		took := time.Since(start)
		recordMiss(ctx, dep, took)
		if err != nil {
			r.logger.Warn("dependency computation failed",
				slog.String("model", key.model), slog.String("dependency", dep),
				slog.String("label", key.label), slog.Any("error", err))
			return nil, err
		}
		actual, _ := r.cache.LoadOrStore(key, v)
		r.logger.Debug("dependency computed",
			slog.String("model", key.model), slog.String("dependency", dep),
			slog.String("label", key.label), slog.Duration("took", took))
		return actual, nil
	})
	if err != nil {
		return nil, err
	}
	return v, nil
}

func (r *Registrar) counter(key registrarKey) *atomic.Int64 {
	c, _ := r.calls.LoadOrStore(key, new(atomic.Int64))
	return c.(*atomic.Int64)
}

// Cached reports whether the artifact is in the cache.
func (r *Registrar) Cached(m Model, dep, label string) bool {
	_, ok := r.cache.Load(keyFor(m, dep, label))
	return ok
}

// Calls returns how many times the accessor for the key was invoked.
func (r *Registrar) Calls(m Model, dep, label string) int {
	c, ok := r.calls.Load(keyFor(m, dep, label))
	if !ok {
		return 0
	}
	return int(c.(*atomic.Int64).Load())
}

// Len returns the number of cached artifacts.
func (r *Registrar) Len() int {
	n := 0
	r.cache.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// Keys lists cached artifacts as "dependency[label]" strings for a model,
// sorted.
func (r *Registrar) Keys(m Model) []string {
	var out []string
	r.cache.Range(func(k, _ any) bool {
		key := k.(registrarKey)
		if key.model != m.ID() {
			return true
		}
		s := key.dep
		if key.label != "" {
			s += "[" + key.label + "]"
		}
		out = append(out, s)
		return true
	})
	sort.Strings(out)
	return out
}

// Warm computes deps for every label ahead of the first request. Missing
// capabilities are skipped with a warning; other failures abort.
func (r *Registrar) Warm(ctx context.Context, m Model, deps []string) error {
	labels := []string{""}
	if IsClassifier(m) {
		labels = m.Labels()
	}
	for _, dep := range deps {
		for _, label := range labels {
			if _, err := r.Ensure(ctx, m, dep, label); err != nil {
				if IsCapabilityMissing(err) {
					r.logger.Warn("skipping dependency the model cannot compute", slog.String("dependency", dep))
					break
				}
				return err
			}
		}
	}
	return nil
}
