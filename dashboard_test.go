package hxdash

import (
	"bytes"
	"context"
	"reflect"
	"strings"
	"testing"

	"github.com/pthm/hxdash/render"
)

func newTestDashboard(opts ...DashboardOption) (*Dashboard, *widget) {
	d := New(newFakeModel(), opts...)
	w := mustWidget(d, WithName("w"))
	d.Add(w)
	return d, w
}

func TestDashboardSetMode(t *testing.T) {
	d := New(nil)
	if d.Mode() != ModeUnset {
		t.Fatalf("Mode() = %v, want unset", d.Mode())
	}
	if err := d.SetMode(ModeBatch); err != nil {
		t.Fatal(err)
	}
	if err := d.SetMode(ModeBatch); err != nil {
		t.Errorf("SetMode(same) error = %v", err)
	}
	if err := d.SetMode(ModeLive); !IsConfiguration(err) {
		t.Errorf("SetMode(live) error = %v, want configuration error", err)
	}
	if _, err := d.Graph(); !IsConfiguration(err) {
		t.Errorf("Graph() in batch mode error = %v, want configuration error", err)
	}
}

func TestDashboardAddAfterWirePanics(t *testing.T) {
	d, _ := newTestDashboard()
	if _, err := d.Graph(); err != nil {
		t.Fatal(err)
	}
	defer func() {
		if recover() == nil {
			t.Error("Add() after wiring did not panic")
		}
	}()
	d.Add(mustWidget(d))
}

func TestDashboardStateSchema(t *testing.T) {
	d, w := newTestDashboard()
	want := []Channel{w.Ch("depth"), w.Ch("index")}
	if got := d.StateTuples(); !reflect.DeepEqual(got, want) {
		t.Errorf("StateTuples() = %v, want %v", got, want)
	}
	if got := d.Dependencies(); !reflect.DeepEqual(got, []string{DepShapValues}) {
		t.Errorf("Dependencies() = %v", got)
	}
	fields := d.Fields()
	if len(fields) != 2 || fields[0].Kind != KindInt || fields[0].Component != "w" {
		t.Errorf("Fields() = %+v", fields)
	}

	state := d.DefaultState()
	args, err := w.StateArgs(state)
	if err != nil {
		t.Fatalf("StateArgs(DefaultState()) error = %v", err)
	}
	if args.Int("depth") != 3 || args.String("index") != "" {
		t.Errorf("DefaultState() = %v", state)
	}
}

func TestDashboardLayoutDecoratesControls(t *testing.T) {
	d, w := newTestDashboard(WithBasePath("/explain/"))
	idx := render.NewIndex(d.Layout())

	n, ok := idx[w.ID("depth")]
	if !ok {
		t.Fatal("depth control missing from layout")
	}
	if got := n.Attrs["hx-post"]; got != "/explain"+PathSet {
		t.Errorf("hx-post = %v, want /explain%s", got, PathSet)
	}
	if got := n.Attrs["hx-include"]; got != "#"+w.ID("depth") {
		t.Errorf("hx-include = %v", got)
	}
	if out := idx[w.out.ID]; out.Attrs != nil {
		t.Errorf("output div decorated: %v", out.Attrs)
	}
}

func TestLiveOutputMatchesExport(t *testing.T) {
	d, w := newTestDashboard()
	ctx := context.Background()

	s, _, err := d.NewSession(ctx)
	if err != nil {
		t.Fatal(err)
	}
	delta, err := s.Set(ctx, w.Ch("index"), "b")
	if err != nil {
		t.Fatal(err)
	}
	live, _ := delta.Value(w.out)
	if live != "shap_values[] depth=3 index=b" {
		t.Fatalf("live output = %v", live)
	}

	doc, err := d.ToHTML(ctx, s.Snapshot(d.StateTuples()))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(doc, live.(string)) {
		t.Errorf("export does not contain live output %q", live)
	}
	if got := d.Registrar().Calls(d.Model(), DepShapValues, ""); got != 1 {
		t.Errorf("shap_values computed %d times, want 1", got)
	}
}

func TestWireSkipsExcluded(t *testing.T) {
	d := New(newFakeModel())
	parent, child := mustWidget(d), mustWidget(d)
	parent.Compose(child)
	parent.ExcludeCallbacks(child)
	d.Add(parent)

	g, err := d.Graph()
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := g.Writer(parent.out); !ok {
		t.Error("parent handler not wired")
	}
	if _, ok := g.Writer(child.out); ok {
		t.Error("excluded child handler wired")
	}
	if d.Mode() != ModeLive {
		t.Errorf("Mode() = %v, want live", d.Mode())
	}
}

func TestToHTMLMissingState(t *testing.T) {
	d, w := newTestDashboard()
	_, err := d.ToHTML(context.Background(), StateDict{w.Ch("depth").Key(): 1})
	if !IsMissingState(err) {
		t.Fatalf("ToHTML() error = %v, want missing state", err)
	}
	if !strings.Contains(err.Error(), "export w") {
		t.Errorf("error %q does not name the component", err)
	}
}

func TestNormalize(t *testing.T) {
	d, w := newTestDashboard()
	got, err := d.Normalize(StateDict{w.Ch("depth").Key(): "2", "unrelated": "x"})
	if err != nil {
		t.Fatal(err)
	}
	if v, _ := got.Get(w.Ch("depth")); v != 2 {
		t.Errorf("depth = %#v, want 2", v)
	}
	if got["unrelated"] != "x" {
		t.Error("unknown keys were dropped")
	}
	if _, err := d.Normalize(StateDict{w.Ch("depth").Key(): "deep"}); err == nil {
		t.Error("Normalize() accepted a non-numeric depth")
	}
}

func TestPermalinkRoundTrip(t *testing.T) {
	key := bytes.Repeat([]byte("k"), 32)
	for _, sensitive := range []bool{false, true} {
		opts := []DashboardOption{WithKey(key)}
		if sensitive {
			opts = append(opts, WithEncryptedPermalinks())
		}
		d, w := newTestDashboard(opts...)
		state := StateDict{w.Ch("depth").Key(): 2, w.Ch("index").Key(): "c", "stray": true}

		token, err := d.Permalink(state)
		if err != nil {
			t.Fatal(err)
		}
		got, err := d.ParsePermalink(token)
		if err != nil {
			t.Fatalf("ParsePermalink() error = %v", err)
		}
		want := StateDict{w.Ch("depth").Key(): 2, w.Ch("index").Key(): "c"}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("sensitive=%v: ParsePermalink() = %v, want %v", sensitive, got, want)
		}

		other, _ := newTestDashboard(WithKey(bytes.Repeat([]byte("x"), 32)))
		if _, err := other.ParsePermalink(token); !IsDecryptionError(err) {
			t.Errorf("sensitive=%v: foreign key error = %v, want decryption error", sensitive, err)
		}
	}
}

func TestDashboardWarm(t *testing.T) {
	d, _ := newTestDashboard()
	if err := d.Warm(context.Background()); err != nil {
		t.Fatal(err)
	}
	if !d.Registrar().Cached(d.Model(), DepShapValues, "") {
		t.Error("Warm() did not compute shap_values")
	}
}
