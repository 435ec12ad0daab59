package hxdash

import (
	"context"
	"errors"
	"reflect"
	"testing"
)

func copyTo(out Channel) HandlerFunc {
	return func(cc *CallbackContext, in Values) Result {
		for _, v := range in {
			return Update().Set(out, v)
		}
		return NoUpdate()
	}
}

func TestGraphRegisterValidates(t *testing.T) {
	a, b := ValueOf("a"), ValueOf("b")
	tests := []struct {
		name string
		h    Handler
	}{
		{"no func", Handler{Triggers: []Channel{a}, Outputs: []Channel{b}}},
		{"no triggers", Handler{Outputs: []Channel{b}, Func: copyTo(b)}},
		{"no outputs", Handler{Triggers: []Channel{a}, Func: copyTo(b)}},
	}
	for _, tt := range tests {
		g := NewGraph(nil)
		if err := g.Register(tt.h); !IsConfiguration(err) {
			t.Errorf("%s: Register() error = %v, want configuration error", tt.name, err)
		}
	}
}

func TestGraphSingleWriter(t *testing.T) {
	a, b, out := ValueOf("a"), ValueOf("b"), ValueOf("out")
	g := NewGraph(nil)
	if err := g.Register(Handler{Name: "first", Triggers: []Channel{a}, Outputs: []Channel{out}, Func: copyTo(out)}); err != nil {
		t.Fatal(err)
	}
	err := g.Register(Handler{Name: "second", Triggers: []Channel{b}, Outputs: []Channel{out}, Func: copyTo(out)})
	if !IsConfiguration(err) {
		t.Fatalf("Register() error = %v, want configuration error", err)
	}
	if w, _ := g.Writer(out); w != "first" {
		t.Errorf("Writer(out) = %q, want first", w)
	}
}

func TestSessionPropagatesChains(t *testing.T) {
	a, b, c := ValueOf("a"), ValueOf("b"), ValueOf("c")
	g := NewGraph(nil)
	for _, h := range []Handler{
		{Name: "b-to-c", Triggers: []Channel{b}, Outputs: []Channel{c}, Func: copyTo(c), SkipInitial: true},
		{Name: "a-to-b", Triggers: []Channel{a}, Outputs: []Channel{b}, Func: copyTo(b), SkipInitial: true},
	} {
		if err := g.Register(h); err != nil {
			t.Fatal(err)
		}
	}

	s := g.NewSession(StateDict{"a": 1})
	delta, err := s.Set(context.Background(), a, 2)
	if err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if !reflect.DeepEqual(delta.Changed, []Channel{a, b, c}) {
		t.Errorf("Changed = %v, want [a b c]", delta.Changed)
	}
	if v, _ := s.Get(c); v != 2 {
		t.Errorf("Get(c) = %v, want 2", v)
	}

	// Setting the same value again is not a change.
	delta, _ = s.Set(context.Background(), a, 2)
	if len(delta.Changed) != 0 {
		t.Errorf("Changed = %v, want none", delta.Changed)
	}
}

func TestSessionContextReadAtInvocation(t *testing.T) {
	trig, mid, out := ValueOf("trig"), ValueOf("mid"), ValueOf("out")
	g := NewGraph(nil)
	// Registered first, so it runs first in the round and its write is
	// visible to the context read below.
	_ = g.Register(Handler{Name: "writer", Triggers: []Channel{trig}, Outputs: []Channel{mid}, Func: copyTo(mid), SkipInitial: true})
	_ = g.Register(Handler{
		Name:        "reader",
		Triggers:    []Channel{trig},
		Context:     []Channel{mid},
		Outputs:     []Channel{out},
		SkipInitial: true,
		Func: func(cc *CallbackContext, in Values) Result {
			return Update().Set(out, in.Get(mid))
		},
	})

	s := g.NewSession(nil)
	if _, err := s.Set(context.Background(), trig, "x"); err != nil {
		t.Fatal(err)
	}
	if v, _ := s.Get(out); v != "x" {
		t.Errorf("Get(out) = %v, want x", v)
	}

	// Changing a context channel alone fires nothing.
	delta, _ := s.Set(context.Background(), mid, "y")
	if delta.Has(out) {
		t.Error("context channel triggered the handler")
	}
}

func TestSessionInitSkipsOptedOut(t *testing.T) {
	a, b, c := ValueOf("a"), ValueOf("b"), ValueOf("c")
	g := NewGraph(nil)
	_ = g.Register(Handler{Triggers: []Channel{a}, Outputs: []Channel{b}, Func: copyTo(b)})
	_ = g.Register(Handler{Triggers: []Channel{a}, Outputs: []Channel{c}, Func: copyTo(c), SkipInitial: true})

	s := g.NewSession(StateDict{"a": "v"})
	delta, err := s.Init(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !delta.Has(b) || delta.Has(c) {
		t.Errorf("Init() changed %v, want only b", delta.Changed)
	}
}

func TestSessionHandlerFailuresAreNoops(t *testing.T) {
	a, b, c, d := ValueOf("a"), ValueOf("b"), ValueOf("c"), ValueOf("d")
	g := NewGraph(nil)
	_ = g.Register(Handler{Name: "panics", Triggers: []Channel{a}, Outputs: []Channel{b}, SkipInitial: true,
		Func: func(*CallbackContext, Values) Result { panic("boom") }})
	_ = g.Register(Handler{Name: "fails", Triggers: []Channel{a}, Outputs: []Channel{c}, SkipInitial: true,
		Func: func(*CallbackContext, Values) Result { return Fail(errors.New("boom")) }})
	_ = g.Register(Handler{Name: "sneaky", Triggers: []Channel{a}, Outputs: []Channel{d}, SkipInitial: true,
		Func: func(*CallbackContext, Values) Result { return Update().Set(b, "undeclared") }})

	s := g.NewSession(nil)
	delta, err := s.Set(context.Background(), a, 1)
	if err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if !reflect.DeepEqual(delta.Changed, []Channel{a}) {
		t.Errorf("Changed = %v, want only a", delta.Changed)
	}
}

func TestSessionDetectsLoops(t *testing.T) {
	a, b := ValueOf("a"), ValueOf("b")
	inc := func(out Channel) HandlerFunc {
		return func(cc *CallbackContext, in Values) Result {
			for _, v := range in {
				n, _ := v.(int)
				return Update().Set(out, n+1)
			}
			return NoUpdate()
		}
	}
	g := NewGraph(nil)
	_ = g.Register(Handler{Triggers: []Channel{a}, Outputs: []Channel{b}, Func: inc(b), SkipInitial: true})
	_ = g.Register(Handler{Triggers: []Channel{b}, Outputs: []Channel{a}, Func: inc(a), SkipInitial: true})

	s := g.NewSession(nil)
	_, err := s.Set(context.Background(), a, 0)
	if !errors.Is(err, ErrUpdateLoop) {
		t.Errorf("Set() error = %v, want ErrUpdateLoop", err)
	}
}

func TestSessionSnapshot(t *testing.T) {
	g := NewGraph(nil)
	s := g.NewSession(StateDict{"a": 1, "b.style": 2, "c": 3})
	snap := s.Snapshot([]Channel{ValueOf("a"), {ID: "b", Attr: "style"}, ValueOf("z")})
	if !reflect.DeepEqual(snap, StateDict{"a": 1, "b.style": 2}) {
		t.Errorf("Snapshot() = %v", snap)
	}
	if got := len(s.State()); got != 3 {
		t.Errorf("State() has %d entries, want 3", got)
	}
}
