package hxdash

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/pthm/hxdash/render"
)

// Base is embedded by concrete components. It owns the instance name, the
// display configuration, the declared state schema and dependencies, the
// composed children and the public channel properties.
//
// Example:
//
//	type Importances struct {
//	    *hxdash.Base
//	}
//
//	func NewImportances(d *hxdash.Dashboard, opts ...hxdash.Option) (*Importances, error) {
//	    base, err := hxdash.NewBase(d, hxdash.Class{
//	        Kind:   "importances",
//	        Title:  "Feature Importances",
//	        Schema: hxdash.Schema{hxdash.Field("depth", "importances-depth-", hxdash.KindInt)},
//	    }, opts...)
//	    if err != nil {
//	        return nil, err
//	    }
//	    base.RequireDependencies(hxdash.DepImportances)
//	    return &Importances{Base: base}, nil
//	}
type Base struct {
	dash        *Dashboard
	kind        string
	name        string
	title       string
	subtitle    string
	description string
	hide        map[string]bool

	schema   Schema
	fields   map[string]StateField
	surfaces []Channel
	deps     map[string]bool
	children []Component
	excluded []Component
	public   map[string][]Channel

	logger *slog.Logger
}

// Class describes what all instances of a concrete component share.
type Class struct {
	Kind        string
	Title       string
	Subtitle    string
	Description string
	Schema      Schema
}

// Options configures a single component instance.
type Options struct {
	Name        string
	Title       string
	Subtitle    string
	Description string
	Hide        []string
	Shared      bool
	Parent      Component
}

// Option mutates Options.
type Option func(*Options)

// WithName sets an explicit instance name.
func WithName(name string) Option { return func(o *Options) { o.Name = name } }

// WithTitle overrides the class title.
func WithTitle(title string) Option { return func(o *Options) { o.Title = title } }

// WithSubtitle overrides the class subtitle.
func WithSubtitle(s string) Option { return func(o *Options) { o.Subtitle = s } }

// WithDescription overrides the class description.
func WithDescription(d string) Option { return func(o *Options) { o.Description = d } }

// WithHide hides the named sub-elements ("title", "selector", "footer", ...).
func WithHide(subs ...string) Option {
	return func(o *Options) { o.Hide = append(o.Hide, subs...) }
}

// SharedName opts in to reusing an explicit name that another component
// already holds, so both address the same channels.
func SharedName(name string) Option {
	return func(o *Options) {
		o.Name = name
		o.Shared = true
	}
}

// NestedIn gives a sub-component its parent's name so its channels line up
// with the parent's. No namespace allocation happens.
func NestedIn(parent Component) Option { return func(o *Options) { o.Parent = parent } }

// NewBase allocates a name from the dashboard namespace and validates the
// class schema. d may be nil for components built outside a dashboard (a
// private namespace and registrar are used then).
func NewBase(d *Dashboard, class Class, opts ...Option) (*Base, error) {
	if d == nil {
		d = New(nil)
	}
	var o Options
	for _, opt := range opts {
		opt(&o)
	}

	var (
		name string
		err  error
	)
	switch {
	case o.Parent != nil:
		name = o.Parent.Name()
	case o.Shared:
		name, err = d.Namespace().AllocateShared(o.Name)
	default:
		name, err = d.Namespace().Allocate(o.Name)
	}
	if err != nil {
		return nil, err
	}
	if err := class.Schema.validate(class.Kind + " " + name); err != nil {
		return nil, err
	}

	b := &Base{
		dash:        d,
		kind:        class.Kind,
		name:        name,
		title:       firstNonEmpty(o.Title, class.Title),
		subtitle:    firstNonEmpty(o.Subtitle, class.Subtitle),
		description: firstNonEmpty(o.Description, class.Description),
		hide:        make(map[string]bool),
		schema:      class.Schema,
		fields:      make(map[string]StateField, len(class.Schema)),
		deps:        make(map[string]bool),
		public:      make(map[string][]Channel),
		logger:      d.Logger().With(slog.String("component", class.Kind), slog.String("name", name)),
	}
	for _, f := range class.Schema {
		b.fields[f.Name] = f
	}
	for _, s := range o.Hide {
		b.hide[s] = true
	}
	return b, nil
}

// MustBase is like NewBase but panics on error.
func MustBase(d *Dashboard, class Class, opts ...Option) *Base {
	b, err := NewBase(d, class, opts...)
	if err != nil {
		panic(err)
	}
	return b
}

func firstNonEmpty(s ...string) string {
	for _, v := range s {
		if v != "" {
			return v
		}
	}
	return ""
}

// Name returns the instance name.
func (b *Base) Name() string { return b.name }

// Kind returns the component class name.
func (b *Base) Kind() string { return b.kind }

// Title returns the display title.
func (b *Base) Title() string { return b.title }

// Subtitle returns the display subtitle.
func (b *Base) Subtitle() string { return b.subtitle }

// Description returns the explanatory text, defaulting to the class text.
func (b *Base) Description() string { return b.description }

// Dashboard returns the dashboard the component belongs to.
func (b *Base) Dashboard() *Dashboard { return b.dash }

// Model returns the dashboard's model.
func (b *Base) Model() Model { return b.dash.Model() }

// Logger returns a logger tagged with the component kind and name.
func (b *Base) Logger() *slog.Logger { return b.logger }

// Hidden reports whether the named sub-element is hidden.
func (b *Base) Hidden(sub string) bool { return b.hide[sub] }

// Hide sets the visibility of a sub-element.
func (b *Base) Hide(sub string, hidden bool) { b.hide[sub] = hidden }

// Ch returns the channel of a declared state field. It panics on an
// undeclared field; that is a bug in the concrete component.
func (b *Base) Ch(field string) Channel {
	f, ok := b.fields[field]
	if !ok {
		panic(fmt.Sprintf("hxdash: %s %s has no state field %q", b.kind, b.name, field))
	}
	return f.Channel(b.name)
}

// ID returns the element id of a declared state field.
func (b *Base) ID(field string) string { return b.Ch(field).ID }

// Surface declares a non-state output channel (a graph, a table, a style)
// and returns it. Surfaces can be handler outputs but are not snapshot
// fields.
func (b *Base) Surface(prefix, attr string) Channel {
	ch := normalize(Channel{ID: ChannelID(prefix, b.name), Attr: attr})
	for _, s := range b.surfaces {
		if s == ch {
			return ch
		}
	}
	b.surfaces = append(b.surfaces, ch)
	return ch
}

// Fields returns the schema bound to this instance.
func (b *Base) Fields() []BoundField {
	out := make([]BoundField, 0, len(b.schema))
	for _, f := range b.schema {
		out = append(out, BoundField{StateField: f, Component: b.name, Ch: f.Channel(b.name)})
	}
	return out
}

// RequireDependencies declares analytical artifacts the component needs.
// Calls are additive. Declaring computes nothing.
func (b *Base) RequireDependencies(names ...string) {
	for _, n := range names {
		b.deps[n] = true
	}
}

// Dependencies returns the sorted declared dependencies.
func (b *Base) Dependencies() []string {
	out := make([]string, 0, len(b.deps))
	for d := range b.deps {
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}

// Compose adds child components. Their state tuples become part of this
// component's and their public channels are reachable through it.
func (b *Base) Compose(children ...Component) {
	b.children = append(b.children, children...)
}

// Children returns the composed child components.
func (b *Base) Children() []Component { return b.children }

// ExcludeCallbacks suppresses the handlers of the given components. Use it
// when this component drives them through explicit input wiring.
func (b *Base) ExcludeCallbacks(cs ...Component) {
	b.excluded = append(b.excluded, cs...)
}

// Excluded returns the components whose handlers must not be wired.
func (b *Base) Excluded() []Component { return b.excluded }

// IsExcluded reports whether c was excluded by this component.
func (b *Base) IsExcluded(c Component) bool {
	for _, e := range b.excluded {
		if e == c {
			return true
		}
	}
	return false
}

// Publish exposes a channel under a public property for connectors.
func (b *Base) Publish(prop string, ch Channel) {
	b.public[prop] = append(b.public[prop], normalize(ch))
}

// PublicChannels returns the channels published under prop by this
// component and, recursively, its children.
func (b *Base) PublicChannels(prop string) []Channel {
	var out []Channel
	out = append(out, b.public[prop]...)
	for _, c := range b.children {
		if p, ok := c.(Publisher); ok {
			out = append(out, p.PublicChannels(prop)...)
		}
	}
	return dedupe(out)
}

// PublicChannel returns the single channel published under prop.
func (b *Base) PublicChannel(prop string) (Channel, error) {
	chs := b.PublicChannels(prop)
	if len(chs) != 1 {
		return Channel{}, configErrorf(b.name, "expected one %q channel, found %d", prop, len(chs))
	}
	return chs[0], nil
}

// PublicProperties returns the sorted property names published anywhere in
// the component tree.
func (b *Base) PublicProperties() []string {
	set := make(map[string]bool)
	for p, chs := range b.public {
		if len(chs) > 0 {
			set[p] = true
		}
	}
	for _, c := range b.children {
		if p, ok := c.(Publisher); ok {
			for _, prop := range p.PublicProperties() {
				set[prop] = true
			}
		}
	}
	out := make([]string, 0, len(set))
	for p := range set {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// StateTuples returns the sorted, de-duplicated channels of this component's
// schema unioned with those of every composed child.
func (b *Base) StateTuples() []Channel {
	var out []Channel
	for _, f := range b.schema {
		out = append(out, f.Channel(b.name))
	}
	for _, c := range b.children {
		out = append(out, c.StateTuples()...)
	}
	return sortChannels(out)
}

// StateArgs projects this component's own fields out of a snapshot.
func (b *Base) StateArgs(state StateDict) (StateArgs, error) {
	args, err := ProjectState(b.schema, b.name, state)
	if err != nil {
		var mse *MissingStateError
		if errors.As(err, &mse) {
			mse.Component = b.kind + " " + b.name
		}
		return nil, err
	}
	return args, nil
}

// Callbacks registers nothing. Components with handlers override it.
func (b *Base) Callbacks(rt Runtime) error { return nil }

// Owns reports whether ch is a state field or surface of this component or
// one of its children.
func (b *Base) Owns(ch Channel) bool {
	ch = normalize(ch)
	for _, f := range b.schema {
		if f.Channel(b.name) == ch {
			return true
		}
	}
	for _, s := range b.surfaces {
		if s == ch {
			return true
		}
	}
	for _, c := range b.children {
		if o, ok := c.(interface{ Owns(Channel) bool }); ok && o.Owns(ch) {
			return true
		}
	}
	return false
}

// Register validates that every channel the handler touches belongs to this
// component tree, then registers it with rt. A handler reading a channel
// that is not declared would render a default in batch mode instead of the
// real value, so that is a configuration error.
func (b *Base) Register(rt Runtime, h Handler) error {
	for _, group := range [][]Channel{h.Triggers, h.Context, h.Outputs} {
		for _, ch := range group {
			if !b.Owns(ch) {
				return configErrorf(b.kind+" "+b.name, "handler %q uses channel %s which the component does not declare", h.Name, ch)
			}
		}
	}
	if h.Owner == "" {
		h.Owner = b.name
	}
	if h.Name == "" {
		h.Name = b.kind + "-" + b.name
	}
	return rt.Register(h)
}

// Artifact returns a dependency computed through the dashboard registrar.
// The dependency must have been declared with RequireDependencies.
func (b *Base) Artifact(ctx context.Context, dep, label string) (any, error) {
	if !b.deps[dep] {
		return nil, configErrorf(b.kind+" "+b.name, "dependency %q used but not declared", dep)
	}
	if b.Model() == nil {
		return nil, &CapabilityMissingError{Model: "<none>", Dependency: dep}
	}
	return b.dash.Registrar().Ensure(ctx, b.Model(), dep, label)
}

// ArtifactAs is Artifact with a type assertion on the result.
func ArtifactAs[T any](ctx context.Context, b *Base, dep, label string) (T, error) {
	var zero T
	v, err := b.Artifact(ctx, dep, label)
	if err != nil {
		return zero, err
	}
	t, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("hxdash: dependency %q is %T, want %T", dep, v, zero)
	}
	return t, nil
}

// Degrade turns a render-time failure into an in-place placeholder. It
// handles only capability gaps, logging a warning; other errors are
// returned unchanged with a nil node.
func (b *Base) Degrade(id string, err error) (*render.Node, error) {
	if !IsCapabilityMissing(err) {
		return nil, err
	}
	b.logger.Warn("dependency unavailable, rendering placeholder", slog.Any("error", err))
	return render.Placeholder(id, fmt.Sprintf("%s is not available for this model.", b.title)), nil
}

// Export renders content as the component's static card. addHeader wraps
// the card in a standalone document.
func (b *Base) Export(ctx context.Context, addHeader bool, content ...*render.Node) (string, error) {
	html, err := render.String(ctx, render.StaticCard(b.title, b.subtitle, content...))
	if err != nil {
		return "", err
	}
	if addHeader {
		return render.Document(b.title, html), nil
	}
	return html, nil
}

// LabelOr returns label, or the model's default label when label is empty.
func (b *Base) LabelOr(label string) string {
	if label != "" || b.Model() == nil {
		return label
	}
	return b.Model().DefaultLabel()
}

func dedupe(chs []Channel) []Channel {
	seen := make(map[Channel]bool, len(chs))
	out := chs[:0:0]
	for _, c := range chs {
		c = normalize(c)
		if seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	return out
}
