package hxdash

import (
	"context"
	"fmt"

	"github.com/pthm/hxdash/render"
)

// Connector broadcasts one channel's value to one or more other channels.
// It has no visual surface and no state of its own; in batch mode it does
// nothing, since a snapshot already holds the synchronized values.
//
//	conn, err := hxdash.NewIndexConnector(
//	    hxdash.Ref(selector, hxdash.PropIndex),
//	    hxdash.RefsOf(hxdash.PropIndex, summary, contributions),
//	    model,
//	)
type Connector struct {
	name    string
	kind    string
	input   Channel
	outputs []Channel

	accept       func(v any) bool
	originChecks bool
}

// ConnectorOption configures a Connector.
type ConnectorOption func(*Connector)

// WithAccept only lets values through for which accept returns true;
// others produce the no-op signal.
func WithAccept(accept func(v any) bool) ConnectorOption {
	return func(c *Connector) { c.accept = accept }
}

// WithOriginCheck ignores firings whose triggering channel is not the input.
func WithOriginCheck() ConnectorOption {
	return func(c *Connector) { c.originChecks = true }
}

// WithKind names the connector variant. The kind prefixes the generated
// connector name.
func WithKind(kind string) ConnectorOption {
	return func(c *Connector) { c.kind = kind }
}

// NewConnector builds an identity broadcast from input to outputs. The input
// must resolve to exactly one channel and the outputs to at least one.
// Outputs that include the input would re-trigger the connector from its own
// broadcast and are rejected.
func NewConnector(input, outputs ChannelRef, opts ...ConnectorOption) (*Connector, error) {
	c := &Connector{kind: "connector"}
	for _, opt := range opts {
		opt(c)
	}

	in, err := Resolve(input)
	if err != nil {
		return nil, fmt.Errorf("%s input: %w", c.kind, err)
	}
	if len(in) != 1 {
		return nil, configErrorf("", "%s input must resolve to one channel, got %d", c.kind, len(in))
	}
	outs, err := Resolve(outputs)
	if err != nil {
		return nil, fmt.Errorf("%s outputs: %w", c.kind, err)
	}
	if len(outs) == 0 {
		return nil, configErrorf("", "%s has no output channels", c.kind)
	}
	for _, o := range outs {
		if o == in[0] {
			return nil, configErrorf("", "%s output %s is its own input", c.kind, o)
		}
	}

	c.input = in[0]
	c.outputs = outs
	c.name = c.kind + "-" + randomToken()
	return c, nil
}

// MustConnector is like NewConnector but panics on error.
func MustConnector(c *Connector, err error) *Connector {
	if err != nil {
		panic(err)
	}
	return c
}

// NewPosLabelConnector syncs a class-label selection. outputs may reference
// whole composite components; every pos_label channel in their trees is
// collected, duplicates removed.
func NewPosLabelConnector(input, outputs ChannelRef) (*Connector, error) {
	return NewConnector(input, outputs, WithKind("pos-label-connector"))
}

// NewCutoffConnector syncs a classification cutoff.
func NewCutoffConnector(input, outputs ChannelRef) (*Connector, error) {
	return NewConnector(input, outputs, WithKind("cutoff-connector"))
}

// NewHighlightConnector syncs a highlighted node or feature.
func NewHighlightConnector(input, outputs ChannelRef) (*Connector, error) {
	return NewConnector(input, outputs, WithKind("highlight-connector"))
}

// NewIndexConnector syncs a selected record. An empty selection is never
// broadcast, and when m is not nil neither are values that do not name a
// record of m. Firings not caused by the input channel are ignored.
func NewIndexConnector(input, outputs ChannelRef, m Model) (*Connector, error) {
	return NewConnector(input, outputs,
		WithKind("index-connector"),
		WithOriginCheck(),
		WithAccept(func(v any) bool {
			s, _ := coerceOr(KindString, v).(string)
			if s == "" {
				return false
			}
			return m == nil || m.IndexExists(s)
		}),
	)
}

// Name returns the connector's generated name.
func (c *Connector) Name() string { return c.name }

// Title is empty: connectors have no visual surface.
func (c *Connector) Title() string { return "" }

// Input returns the resolved input channel.
func (c *Connector) Input() Channel { return c.input }

// Outputs returns the resolved output channels.
func (c *Connector) Outputs() []Channel { return append([]Channel(nil), c.outputs...) }

// Layout renders nothing.
func (c *Connector) Layout() *render.Node { return nil }

// StateTuples is empty.
func (c *Connector) StateTuples() []Channel { return nil }

// StateArgs is empty.
func (c *Connector) StateArgs(StateDict) (StateArgs, error) { return StateArgs{}, nil }

// ToHTML renders nothing.
func (c *Connector) ToHTML(context.Context, StateDict, bool) (string, error) { return "", nil }

// Dependencies is empty.
func (c *Connector) Dependencies() []string { return nil }

// Children is empty.
func (c *Connector) Children() []Component { return nil }

// Callbacks registers the single broadcast handler.
func (c *Connector) Callbacks(rt Runtime) error {
	return rt.Register(Handler{
		Name:     c.name,
		Owner:    c.name,
		Triggers: []Channel{c.input},
		Outputs:  c.outputs,
		Func:     c.broadcast,
	})
}

func (c *Connector) broadcast(cc *CallbackContext, in Values) Result {
	if c.originChecks && !cc.TriggeredBy(c.input) {
		return NoUpdate()
	}
	v := in.Get(c.input)
	if cc.IsInitial() && v == nil {
		return NoUpdate()
	}
	if c.accept != nil && !c.accept(v) {
		return NoUpdate()
	}
	res := Update()
	for _, o := range c.outputs {
		res = res.Set(o, v)
	}
	return res
}
