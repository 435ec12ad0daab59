package hxdash

import (
	"context"
	"log/slog"
)

// HandlerFunc computes new output values from the current channel values.
// It must be a pure function of its inputs.
type HandlerFunc func(cc *CallbackContext, in Values) Result

// Handler is one reactive update rule.
//
// It fires whenever any Trigger channel changes. Context channels are read
// but never trigger it. Only Outputs may be written; values set on other
// channels are dropped.
type Handler struct {
	Name     string
	Owner    string
	Triggers []Channel
	Context  []Channel
	Outputs  []Channel
	Func     HandlerFunc

	// SkipInitial keeps the handler from firing during Session.Init.
	SkipInitial bool
}

func (h Handler) inputs() []Channel {
	out := make([]Channel, 0, len(h.Triggers)+len(h.Context))
	out = append(out, h.Triggers...)
	return append(out, h.Context...)
}

func (h Handler) writes(ch Channel) bool {
	for _, o := range h.Outputs {
		if o == ch {
			return true
		}
	}
	return false
}

// Values holds the channel values a handler was invoked with.
type Values map[Channel]any

// Get returns the raw value of a channel.
func (v Values) Get(ch Channel) any { return v[normalize(ch)] }

// IsNone reports whether the channel holds the "no selection" sentinel:
// nil or an empty string.
func (v Values) IsNone(ch Channel) bool {
	switch t := v.Get(ch).(type) {
	case nil:
		return true
	case string:
		return t == ""
	}
	return false
}

// String returns the channel value coerced to a string.
func (v Values) String(ch Channel) string {
	s, _ := coerceOr(KindString, v.Get(ch)).(string)
	return s
}

// Int returns the channel value coerced to an int.
func (v Values) Int(ch Channel) int {
	i, _ := coerceOr(KindInt, v.Get(ch)).(int)
	return i
}

// Float returns the channel value coerced to a float64.
func (v Values) Float(ch Channel) float64 {
	f, _ := coerceOr(KindFloat, v.Get(ch)).(float64)
	return f
}

// Bool returns the channel value coerced to a bool.
func (v Values) Bool(ch Channel) bool {
	b, _ := coerceOr(KindBool, v.Get(ch)).(bool)
	return b
}

// Strings returns the channel value coerced to a string list.
func (v Values) Strings(ch Channel) []string {
	s, _ := coerceOr(KindStrings, v.Get(ch)).([]string)
	return s
}

// State returns the values as a snapshot, so a handler can project them
// through the same schema ToHTML uses.
func (v Values) State() StateDict {
	out := make(StateDict, len(v))
	for ch, val := range v {
		out.Set(normalize(ch), val)
	}
	return out
}

func coerceOr(kind Kind, raw any) any {
	v, err := Coerce(kind, raw)
	if err != nil {
		return nil
	}
	return v
}

// CallbackContext carries per-invocation information to a handler.
type CallbackContext struct {
	ctx       context.Context
	handler   string
	triggered []Channel
	initial   bool
	logger    *slog.Logger
}

// NewCallbackContext builds a context for invoking a handler outside a
// session, mainly in tests.
func NewCallbackContext(ctx context.Context, triggered ...Channel) *CallbackContext {
	for i := range triggered {
		triggered[i] = normalize(triggered[i])
	}
	return &CallbackContext{
		ctx:       ctx,
		triggered: triggered,
		initial:   len(triggered) == 0,
		logger:    slog.Default(),
	}
}

// Context returns the request context.
func (cc *CallbackContext) Context() context.Context { return cc.ctx }

// Triggered returns the trigger channels that changed in this round. It is
// empty on the initial call.
func (cc *CallbackContext) Triggered() []Channel { return cc.triggered }

// TriggeredBy reports whether ch is among the channels that fired the
// handler.
func (cc *CallbackContext) TriggeredBy(ch Channel) bool {
	ch = normalize(ch)
	for _, t := range cc.triggered {
		if t == ch {
			return true
		}
	}
	return false
}

// IsInitial reports whether this is the initial call made when a session
// starts.
func (cc *CallbackContext) IsInitial() bool { return cc.initial }

// Logger returns a logger tagged with the handler name.
func (cc *CallbackContext) Logger() *slog.Logger { return cc.logger }

// Result is returned from handlers to describe which outputs change.
//
// Outputs that are not Set keep their currently rendered value:
//
//	// Update both outputs
//	return hxdash.Update().Set(figure, fig).Set(style, render.Shown)
//
//	// Inputs are inconsistent; leave everything as it is
//	return hxdash.NoUpdate()
//
//	// Tell the user why nothing changed
//	return hxdash.NoUpdate().Notice(hxdash.NoticeWarning, "Unknown index")
//
// A Result carrying an error is logged and treated as NoUpdate.
type Result struct {
	noUpdate bool
	values   map[Channel]any
	order    []Channel
	notices  []Notice
	err      error
}

// Update starts a result that writes outputs.
func Update() Result {
	return Result{}
}

// NoUpdate is the explicit no-op signal.
func NoUpdate() Result {
	return Result{noUpdate: true}
}

// Fail reports an unexpected handler error. The runtime logs it and leaves
// outputs unchanged.
func Fail(err error) Result {
	return Result{noUpdate: true, err: err}
}

// Set writes v to the output channel ch.
func (r Result) Set(ch Channel, v any) Result {
	ch = normalize(ch)
	values := make(map[Channel]any, len(r.values)+1)
	for k, val := range r.values {
		values[k] = val
	}
	if _, seen := values[ch]; !seen {
		r.order = append(append([]Channel(nil), r.order...), ch)
	}
	values[ch] = v
	r.values = values
	r.noUpdate = false
	return r
}

// Notice attaches a toast notification.
func (r Result) Notice(level, message string) Result {
	r.notices = append(append([]Notice(nil), r.notices...), Notice{Level: level, Message: message})
	return r
}

// IsNoUpdate reports whether the result leaves every output unchanged.
func (r Result) IsNoUpdate() bool {
	return r.noUpdate || len(r.values) == 0
}

// Value returns the value set for ch.
func (r Result) Value(ch Channel) (any, bool) {
	v, ok := r.values[normalize(ch)]
	return v, ok
}

// Channels returns the channels set, in the order they were first set.
func (r Result) Channels() []Channel { return r.order }

// Notices returns attached notices.
func (r Result) Notices() []Notice { return r.notices }

// Err returns the error passed to Fail.
func (r Result) Err() error { return r.err }
