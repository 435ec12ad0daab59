package hxdash

import (
	"context"
	"errors"
	"reflect"
	"testing"
)

func TestValuesAccessors(t *testing.T) {
	depth, index, none, cols := ValueOf("depth"), ValueOf("index"), ValueOf("none"), ValueOf("cols")
	in := Values{depth: "5", index: 17, none: "", cols: []any{"a", "b"}}

	if got := in.Int(depth); got != 5 {
		t.Errorf("Int() = %d, want 5", got)
	}
	if got := in.String(index); got != "17" {
		t.Errorf("String() = %q, want 17", got)
	}
	if got := in.Float(depth); got != 5 {
		t.Errorf("Float() = %v, want 5", got)
	}
	if got := in.Strings(cols); !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Errorf("Strings() = %v, want [a b]", got)
	}
	if !in.IsNone(none) || !in.IsNone(ValueOf("unset")) || in.IsNone(depth) {
		t.Error("IsNone() should hold for empty strings and missing channels only")
	}
	// A zero-value attr addresses the value channel.
	if got := in.Get(Channel{ID: "depth"}); got != "5" {
		t.Errorf("Get() = %v, want 5", got)
	}

	state := in.State()
	if v, ok := state.Get(index); !ok || v != 17 {
		t.Errorf("State()[index] = %v, %v", v, ok)
	}
}

func TestResultSet(t *testing.T) {
	a, b := ValueOf("a"), Channel{ID: "b", Attr: "style"}
	r := Update().Set(a, 1).Set(b, 2).Set(a, 3)

	if r.IsNoUpdate() {
		t.Error("IsNoUpdate() = true, want false")
	}
	if v, _ := r.Value(a); v != 3 {
		t.Errorf("Value(a) = %v, want 3", v)
	}
	if got := r.Channels(); !reflect.DeepEqual(got, []Channel{a, b}) {
		t.Errorf("Channels() = %v, want [a b]", got)
	}

	// Set returns a copy; the earlier result is untouched.
	base := Update().Set(a, 1)
	_ = base.Set(b, 2)
	if _, ok := base.Value(b); ok {
		t.Error("Set() mutated its receiver")
	}
}

func TestResultNoUpdate(t *testing.T) {
	tests := []struct {
		name string
		r    Result
		want bool
	}{
		{"NoUpdate", NoUpdate(), true},
		{"empty Update", Update(), true},
		{"NoUpdate with notice", NoUpdate().Notice(NoticeWarning, "unknown index"), true},
		{"Fail", Fail(errors.New("boom")), true},
		{"Update with value", Update().Set(ValueOf("x"), 1), false},
	}
	for _, tt := range tests {
		if got := tt.r.IsNoUpdate(); got != tt.want {
			t.Errorf("%s: IsNoUpdate() = %v, want %v", tt.name, got, tt.want)
		}
	}

	r := NoUpdate().Notice(NoticeWarning, "unknown index")
	if n := r.Notices(); len(n) != 1 || n[0].Message != "unknown index" {
		t.Errorf("Notices() = %v", n)
	}
	if err := Fail(ErrCapabilityMissing).Err(); !IsCapabilityMissing(err) {
		t.Errorf("Err() = %v", err)
	}
}

func TestCallbackContext(t *testing.T) {
	cc := NewCallbackContext(context.Background())
	if !cc.IsInitial() {
		t.Error("IsInitial() = false for a context without triggers")
	}

	cc = NewCallbackContext(context.Background(), Channel{ID: "depth"})
	if cc.IsInitial() {
		t.Error("IsInitial() = true, want false")
	}
	if !cc.TriggeredBy(ValueOf("depth")) {
		t.Error("TriggeredBy(depth) = false, want true")
	}
	if cc.TriggeredBy(ValueOf("index")) {
		t.Error("TriggeredBy(index) = true, want false")
	}
	if cc.Logger() == nil {
		t.Error("Logger() = nil")
	}
}
