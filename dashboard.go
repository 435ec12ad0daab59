package hxdash

import (
	"context"
	"crypto/rand"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"sync"

	"github.com/pthm/hxdash/render"
)

// Mode is the execution mode of a dashboard deployment.
type Mode int

const (
	// ModeUnset means neither Wire nor SetMode has been called yet.
	ModeUnset Mode = iota
	// ModeLive serves a reactive page; handlers are registered.
	ModeLive
	// ModeBatch renders fixed documents from snapshots; no handlers run.
	ModeBatch
)

func (m Mode) String() string {
	switch m {
	case ModeLive:
		return "live"
	case ModeBatch:
		return "batch"
	}
	return "unset"
}

// Dashboard assembles components around one model. It owns the namespace
// component names are drawn from, the registrar that caches the model's
// artifacts, and (in live mode) the update graph and browser sessions.
//
//	d := hxdash.New(m, hxdash.WithDashboardTitle("Titanic"))
//	sel := components.Must(components.NewIndexSelector(d, components.IndexSelectorConfig{}))
//	contrib := components.Must(components.NewShapContributionsTable(d, components.ShapContributionsTableConfig{}))
//	d.Add(sel, contrib)
//	d.Connect(hxdash.MustConnector(hxdash.NewIndexConnector(
//	    hxdash.Ref(sel, hxdash.PropIndex), hxdash.Ref(contrib, hxdash.PropIndex), m)))
//	http.Handle("/", d.Handler())
type Dashboard struct {
	title     string
	model     Model
	ns        *Namespace
	reg       *Registrar
	enc       *Encoder
	sensitive bool
	logger    *slog.Logger
	basePath  string

	mu         sync.Mutex
	components []Component
	mode       Mode

	graphOnce sync.Once
	graph     *Graph
	graphErr  error

	sessions *sessionStore

	// OnError renders request failures. Customize it to match your
	// application's error pages.
	OnError func(http.ResponseWriter, *http.Request, error)
}

// DashboardOption configures a Dashboard.
type DashboardOption func(*Dashboard)

// WithDashboardTitle sets the page title.
func WithDashboardTitle(title string) DashboardOption {
	return func(d *Dashboard) { d.title = title }
}

// WithLogger sets the logger used by the dashboard and its components.
func WithLogger(l *slog.Logger) DashboardOption {
	return func(d *Dashboard) { d.logger = l }
}

// WithNamespace shares a namespace across dashboards.
func WithNamespace(ns *Namespace) DashboardOption {
	return func(d *Dashboard) { d.ns = ns }
}

// WithRegistrar injects a registrar, typically to share cached artifacts
// between dashboards on the same model or to count calls in tests.
func WithRegistrar(r *Registrar) DashboardOption {
	return func(d *Dashboard) { d.reg = r }
}

// WithKey sets the permalink key. Without it a random key is generated and
// permalinks do not survive a restart.
func WithKey(key []byte) DashboardOption {
	return func(d *Dashboard) {
		enc, err := NewEncoder(key)
		if err != nil {
			panic(fmt.Sprintf("hxdash: failed to create encoder: %v", err))
		}
		d.enc = enc
	}
}

// WithEncryptedPermalinks makes permalinks opaque instead of signed.
func WithEncryptedPermalinks() DashboardOption {
	return func(d *Dashboard) { d.sensitive = true }
}

// WithBasePath sets the path the dashboard handler is mounted under. It
// prefixes the callback URLs written into the page.
func WithBasePath(p string) DashboardOption {
	return func(d *Dashboard) { d.basePath = strings.TrimSuffix(p, "/") }
}

// New creates a dashboard for m. m may be nil for dashboards that only
// exercise layout and state plumbing.
func New(m Model, opts ...DashboardOption) *Dashboard {
	d := &Dashboard{
		title:  "Model Explainer",
		model:  m,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.ns == nil {
		d.ns = NewNamespace()
	}
	if d.reg == nil {
		d.reg = NewRegistrar(WithRegistrarLogger(d.logger))
	}
	if d.enc == nil {
		key := make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			panic(fmt.Sprintf("hxdash: failed to generate permalink key: %v", err))
		}
		WithKey(key)(d)
	}
	d.sessions = newSessionStore()

	d.OnError = func(w http.ResponseWriter, r *http.Request, err error) {
		switch {
		case IsDecryptionError(err), IsInvalidFormat(err), IsMissingState(err):
			http.Error(w, "Bad request", http.StatusBadRequest)
		default:
			d.logger.Error("request failed", slog.String("path", r.URL.Path), slog.Any("error", err))
			http.Error(w, "Internal error", http.StatusInternalServerError)
		}
	}
	return d
}

// Title returns the page title.
func (d *Dashboard) Title() string { return d.title }

// Model returns the dashboard's model.
func (d *Dashboard) Model() Model { return d.model }

// Namespace returns the name allocator.
func (d *Dashboard) Namespace() *Namespace { return d.ns }

// Registrar returns the artifact cache.
func (d *Dashboard) Registrar() *Registrar { return d.reg }

// Logger returns the dashboard logger.
func (d *Dashboard) Logger() *slog.Logger { return d.logger }

// BasePath returns the path the handler is mounted under, without a
// trailing slash.
func (d *Dashboard) BasePath() string { return d.basePath }

// Add appends top-level components. Adding after the update graph was built
// panics.
func (d *Dashboard) Add(cs ...Component) *Dashboard {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.graph != nil {
		panic("hxdash: components added after the dashboard was wired")
	}
	for _, c := range cs {
		if c == nil {
			panic("hxdash: nil component")
		}
		d.components = append(d.components, c)
	}
	return d
}

// Connect adds connectors.
func (d *Dashboard) Connect(conns ...*Connector) *Dashboard {
	for _, c := range conns {
		d.Add(c)
	}
	return d
}

// Components returns the top-level components in insertion order.
func (d *Dashboard) Components() []Component {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Component(nil), d.components...)
}

// walk visits every component in the tree once, parents before children.
func (d *Dashboard) walk(fn func(Component)) {
	seen := make(map[Component]bool)
	var visit func(c Component)
	visit = func(c Component) {
		if seen[c] {
			return
		}
		seen[c] = true
		fn(c)
		for _, ch := range c.Children() {
			visit(ch)
		}
	}
	for _, c := range d.Components() {
		visit(c)
	}
}

// Mode returns the execution mode.
func (d *Dashboard) Mode() Mode {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.mode
}

// SetMode fixes the execution mode. A dashboard never switches modes.
func (d *Dashboard) SetMode(m Mode) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.mode != ModeUnset && d.mode != m {
		return configErrorf("", "dashboard is in %s mode and cannot switch to %s", d.mode, m)
	}
	d.mode = m
	return nil
}

// StateTuples is the union of every component's state tuples: the full
// schema a snapshot of this dashboard must satisfy.
func (d *Dashboard) StateTuples() []Channel {
	var out []Channel
	for _, c := range d.Components() {
		out = append(out, c.StateTuples()...)
	}
	return sortChannels(out)
}

// Fields returns every declared state field in the tree, keyed once per
// channel.
func (d *Dashboard) Fields() []BoundField {
	seen := make(map[Channel]bool)
	var out []BoundField
	d.walk(func(c Component) {
		s, ok := c.(Schemer)
		if !ok {
			return
		}
		for _, f := range s.Fields() {
			if seen[f.Ch] {
				continue
			}
			seen[f.Ch] = true
			out = append(out, f)
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Ch.Key() < out[j].Ch.Key() })
	return out
}

func (d *Dashboard) kindOf(ch Channel) Kind {
	ch = normalize(ch)
	for _, f := range d.Fields() {
		if f.Ch == ch {
			return f.Kind
		}
	}
	return KindAny
}

// Dependencies is the sorted union of dependencies declared in the tree.
func (d *Dashboard) Dependencies() []string {
	set := make(map[string]bool)
	d.walk(func(c Component) {
		for _, dep := range c.Dependencies() {
			set[dep] = true
		}
	})
	out := make([]string, 0, len(set))
	for dep := range set {
		out = append(out, dep)
	}
	sort.Strings(out)
	return out
}

// Layout builds the live page body. Every control is decorated with the
// attributes that post its changes back to the dashboard.
func (d *Dashboard) Layout() *render.Node {
	root := render.Div("hxdash-root")
	for _, c := range d.Components() {
		if n := c.Layout(); n != nil {
			root.Children = append(root.Children, n)
		}
	}
	render.Walk(root, func(n *render.Node) bool {
		if n.IsControl() {
			if n.Attrs == nil {
				n.Attrs = ControlAttrs(d.basePath, n.ID)
			} else {
				for k, v := range ControlAttrs(d.basePath, n.ID) {
					n.Attrs[k] = v
				}
			}
		}
		return true
	})
	return root
}

// DefaultState reads the initial value of every state tuple from the
// layout. Tuples whose element is missing from the layout are omitted.
func (d *Dashboard) DefaultState() StateDict {
	idx := render.NewIndex(d.Layout())
	state := make(StateDict)
	for _, ch := range d.StateTuples() {
		n, ok := idx[ch.ID]
		if !ok || ch.Attr != DefaultAttr {
			continue
		}
		switch n.Kind {
		case render.KindMarkdown, render.KindText:
			state.Set(ch, n.Text)
		default:
			state.Set(ch, n.Value)
		}
	}
	return state
}

// excludedSet collects every component some other component excluded.
func (d *Dashboard) excludedSet() map[Component]bool {
	out := make(map[Component]bool)
	d.walk(func(c Component) {
		if e, ok := c.(Excluder); ok {
			for _, x := range e.Excluded() {
				out[x] = true
			}
		}
	})
	return out
}

// Wire registers the handlers of every component with rt, skipping the
// subtrees of excluded components. It fixes the dashboard in live mode.
func (d *Dashboard) Wire(rt Runtime) error {
	if err := d.SetMode(ModeLive); err != nil {
		return err
	}
	excluded := d.excludedSet()
	seen := make(map[Component]bool)
	var wire func(c Component) error
	wire = func(c Component) error {
		if excluded[c] || seen[c] {
			return nil
		}
		seen[c] = true
		if err := c.Callbacks(rt); err != nil {
			return err
		}
		for _, ch := range c.Children() {
			if err := wire(ch); err != nil {
				return err
			}
		}
		return nil
	}
	for _, c := range d.Components() {
		if err := wire(c); err != nil {
			return err
		}
	}
	return nil
}

// Graph builds the dashboard's update graph on first use.
func (d *Dashboard) Graph() (*Graph, error) {
	d.graphOnce.Do(func() {
		g := NewGraph(d.logger)
		if err := d.Wire(g); err != nil {
			d.graphErr = err
			return
		}
		d.mu.Lock()
		d.graph = g
		d.mu.Unlock()
	})
	return d.graph, d.graphErr
}

// NewSession starts a live session from the default state and makes the
// initial handler calls.
func (d *Dashboard) NewSession(ctx context.Context) (*Session, Delta, error) {
	g, err := d.Graph()
	if err != nil {
		return nil, Delta{}, err
	}
	s := g.NewSession(d.DefaultState())
	delta, err := s.Init(ctx)
	return s, delta, err
}

// ToHTML renders every component from the snapshot into one standalone
// document. Connectors are inert. A component lacking a declared field in
// state fails the whole export with a MissingStateError.
func (d *Dashboard) ToHTML(ctx context.Context, state StateDict) (string, error) {
	body, err := d.ExportFragment(ctx, state)
	if err != nil {
		return "", err
	}
	return render.Document(d.title, body), nil
}

// ExportFragment is ToHTML without the document header, for embedding the
// export in another page.
func (d *Dashboard) ExportFragment(ctx context.Context, state StateDict) (string, error) {
	var sb strings.Builder
	for _, c := range d.Components() {
		html, err := c.ToHTML(ctx, state, false)
		if err != nil {
			return "", fmt.Errorf("export %s: %w", c.Name(), err)
		}
		if html == "" {
			continue
		}
		sb.WriteString(`<div class="row mb-3"><div class="col">`)
		sb.WriteString(html)
		sb.WriteString("</div></div>\n")
	}
	return sb.String(), nil
}

// Normalize coerces every known field of state to its declared kind, so a
// snapshot read from YAML, JSON, a form or a permalink compares equal to
// one captured from a live session.
func (d *Dashboard) Normalize(state StateDict) (StateDict, error) {
	out := make(StateDict, len(state))
	for k, v := range state {
		out[k] = v
	}
	for _, f := range d.Fields() {
		raw, ok := out.Get(f.Ch)
		if !ok {
			continue
		}
		v, err := Coerce(f.Kind, raw)
		if err != nil {
			return nil, fmt.Errorf("hxdash: state key %q: %w", f.Ch.Key(), err)
		}
		out.Set(f.Ch, v)
	}
	return out, nil
}

// Permalink encodes the dashboard's part of a snapshot into a token.
func (d *Dashboard) Permalink(state StateDict) (string, error) {
	return d.enc.Encode(state.Restrict(d.StateTuples()), d.sensitive)
}

// ParsePermalink decodes a token back into a normalized snapshot.
func (d *Dashboard) ParsePermalink(token string) (StateDict, error) {
	raw, err := d.enc.Decode(token)
	if err != nil {
		return nil, wrapEncodingError(err)
	}
	return d.Normalize(StateDict(raw))
}

// Warm computes every declared dependency for every label up front.
func (d *Dashboard) Warm(ctx context.Context) error {
	if d.model == nil {
		return nil
	}
	return d.reg.Warm(ctx, d.model, d.Dependencies())
}
