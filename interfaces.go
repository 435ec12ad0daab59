package hxdash

import (
	"context"

	"github.com/pthm/hxdash/render"
)

// Component is implemented by every dashboard visualization and by
// connectors. Concrete components embed *Base, which provides everything
// except Layout, ToHTML and usually Callbacks.
//
// The same definition serves both execution modes:
//   - live: Layout renders the page once, Callbacks registers handlers that
//     update channels as the user interacts
//   - batch: ToHTML renders a fixed document from a snapshot, with no
//     runtime involved
//
// ToHTML for a snapshot must match what Layout plus the live handlers show
// for the same channel values.
type Component interface {
	Name() string
	Title() string

	// Layout builds the visual tree. Every interactive control carries a
	// channel id derived from the component's name. Layout has no side
	// effects and may be called repeatedly.
	Layout() *render.Node

	// StateTuples lists, sorted and de-duplicated, every channel this
	// component and its composed children read from a snapshot.
	StateTuples() []Channel

	// StateArgs projects this component's fields out of a snapshot.
	StateArgs(state StateDict) (StateArgs, error)

	// ToHTML renders the component from a snapshot alone. addHeader wraps
	// the fragment in a standalone document.
	ToHTML(ctx context.Context, state StateDict, addHeader bool) (string, error)

	// Callbacks registers the component's own handlers. Children are wired
	// separately by the dashboard.
	Callbacks(rt Runtime) error

	Dependencies() []string
	Children() []Component
}

// Runtime is the update graph handlers are registered against.
type Runtime interface {
	Register(h Handler) error
}

// Publisher is implemented by components that expose channels under named
// public properties (PropIndex, PropPosLabel, ...). Connectors resolve
// component references through it.
type Publisher interface {
	PublicChannels(prop string) []Channel
	PublicProperties() []string
}

// Excluder is implemented by components that feed other components through
// explicit input wiring and therefore suppress those components' handlers.
type Excluder interface {
	Excluded() []Component
}

// Schemer is implemented by components with a declared state schema.
type Schemer interface {
	Fields() []BoundField
}

// Public property names connectors look up.
const (
	PropIndex     = "index"
	PropPosLabel  = "pos_label"
	PropCutoff    = "cutoff"
	PropHighlight = "highlight"
	PropColumn    = "col"
	PropClick     = "click"
)
