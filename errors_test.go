package hxdash

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestSentinelErrors(t *testing.T) {
	errs := []error{
		ErrConfiguration,
		ErrMissingState,
		ErrCapabilityMissing,
		ErrNoUpdate,
		ErrUpdateLoop,
		ErrDecryptFailed,
		ErrSignatureInvalid,
		ErrInvalidFormat,
	}
	for i, err1 := range errs {
		for j, err2 := range errs {
			if i != j && errors.Is(err1, err2) {
				t.Errorf("Sentinel errors should be distinct: %v and %v", err1, err2)
			}
		}
	}
}

func TestErrorPredicates(t *testing.T) {
	tests := []struct {
		name string
		err  error
		fn   func(error) bool
		want bool
	}{
		{"nil configuration", nil, IsConfiguration, false},
		{"configuration error", configErrorf("w", "bad"), IsConfiguration, true},
		{"wrapped configuration", fmt.Errorf("build: %w", configErrorf("", "bad")), IsConfiguration, true},
		{"missing state", &MissingStateError{Field: "depth"}, IsMissingState, true},
		{"wrapped missing state", fmt.Errorf("export: %w", &MissingStateError{}), IsMissingState, true},
		{"capability", &CapabilityMissingError{Model: "m", Dependency: "x"}, IsCapabilityMissing, true},
		{"capability is not config", &CapabilityMissingError{}, IsConfiguration, false},
		{"no update", ErrNoUpdate, IsNoUpdate, true},
		{"decrypt", ErrDecryptFailed, IsDecryptionError, true},
		{"signature", ErrSignatureInvalid, IsDecryptionError, true},
		{"format is not decryption", ErrInvalidFormat, IsDecryptionError, false},
		{"format", fmt.Errorf("x: %w", ErrInvalidFormat), IsInvalidFormat, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.fn(tt.err); got != tt.want {
				t.Errorf("predicate(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestConfigurationErrorMessage(t *testing.T) {
	err := configErrorf("importances abc", "field %q declared twice", "depth")
	want := `hxdash: configuration error in importances abc: field "depth" declared twice`
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}

	err = configErrorf("", "empty channel id")
	if !strings.HasSuffix(err.Error(), ": empty channel id") {
		t.Errorf("Error() = %q, want reason suffix", err.Error())
	}
}

func TestMissingStateErrorSuggests(t *testing.T) {
	err := &MissingStateError{Component: "widget w1", Field: "depth", Key: "widget-depth-w1", Suggest: "widget-depth-w2"}
	msg := err.Error()
	for _, want := range []string{`"depth"`, `"widget-depth-w1"`, `did you mean "widget-depth-w2"?`} {
		if !strings.Contains(msg, want) {
			t.Errorf("Error() = %q, want it to contain %s", msg, want)
		}
	}
}

func TestClosest(t *testing.T) {
	tests := []struct {
		s          string
		candidates []string
		want       string
	}{
		{"pos_lable", []string{"index", "pos_label", "cutoff"}, "pos_label"},
		{"Index", []string{"index", "cutoff"}, "index"},
		{"xyz", []string{"importances-depth-abc"}, ""},
		{"anything", nil, ""},
	}
	for _, tt := range tests {
		if got := closest(tt.s, tt.candidates); got != tt.want {
			t.Errorf("closest(%q, %v) = %q, want %q", tt.s, tt.candidates, got, tt.want)
		}
	}
}
