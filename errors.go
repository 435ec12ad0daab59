package hxdash

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"
)

// Sentinel errors for dashboard operations.
var (
	// ErrConfiguration marks bad wiring detected while the dashboard is
	// built: duplicate names, unresolvable channel references, handlers
	// reading channels their component does not own. Fatal at startup.
	ErrConfiguration = errors.New("hxdash: configuration error")

	// ErrMissingState marks a snapshot that lacks a field a component
	// declared. Fatal for that export call only.
	ErrMissingState = errors.New("hxdash: missing state")

	// ErrCapabilityMissing marks a dependency the model cannot compute.
	// Components recover from it by rendering a placeholder.
	ErrCapabilityMissing = errors.New("hxdash: capability missing")

	// ErrNoUpdate is the no-op signal. Handlers return NoUpdate() rather
	// than this error; the runtime treats both the same.
	ErrNoUpdate = errors.New("hxdash: no update")

	// ErrUpdateLoop marks a propagation that did not settle within the
	// round limit, usually two handlers feeding each other.
	ErrUpdateLoop = errors.New("hxdash: update did not settle")

	ErrDecryptFailed    = errors.New("hxdash: permalink decryption failed")
	ErrSignatureInvalid = errors.New("hxdash: permalink signature verification failed")
	ErrInvalidFormat    = errors.New("hxdash: invalid permalink format")
)

// ConfigurationError describes a wiring mistake. It unwraps to
// ErrConfiguration.
type ConfigurationError struct {
	Component string // name of the offending component, may be empty
	Reason    string
}

func (e *ConfigurationError) Error() string {
	if e.Component == "" {
		return "hxdash: configuration error: " + e.Reason
	}
	return fmt.Sprintf("hxdash: configuration error in %s: %s", e.Component, e.Reason)
}

func (e *ConfigurationError) Unwrap() error { return ErrConfiguration }

func configErrorf(component, format string, args ...any) error {
	return &ConfigurationError{Component: component, Reason: fmt.Sprintf(format, args...)}
}

// MissingStateError names the field and snapshot key a component needed but
// did not find. It unwraps to ErrMissingState.
type MissingStateError struct {
	Component string
	Field     string
	Key       string
	Suggest   string // closest key present in the snapshot, if any
}

func (e *MissingStateError) Error() string {
	msg := fmt.Sprintf("hxdash: missing state for %s field %q (key %q)", e.Component, e.Field, e.Key)
	if e.Suggest != "" {
		msg += fmt.Sprintf("; did you mean %q?", e.Suggest)
	}
	return msg
}

func (e *MissingStateError) Unwrap() error { return ErrMissingState }

// CapabilityMissingError reports a dependency the model has no accessor
// for. It unwraps to ErrCapabilityMissing.
type CapabilityMissingError struct {
	Model      string
	Dependency string
}

func (e *CapabilityMissingError) Error() string {
	return fmt.Sprintf("hxdash: model %s cannot compute %q", e.Model, e.Dependency)
}

func (e *CapabilityMissingError) Unwrap() error { return ErrCapabilityMissing }

// IsConfiguration checks if err is a configuration error.
func IsConfiguration(err error) bool {
	return errors.Is(err, ErrConfiguration)
}

// IsMissingState checks if err is a missing-state error.
func IsMissingState(err error) bool {
	return errors.Is(err, ErrMissingState)
}

// IsCapabilityMissing checks if err reports a dependency the model cannot
// compute.
func IsCapabilityMissing(err error) bool {
	return errors.Is(err, ErrCapabilityMissing)
}

// IsNoUpdate checks if err is the no-op signal.
func IsNoUpdate(err error) bool {
	return errors.Is(err, ErrNoUpdate)
}

// IsDecryptionError checks if err is a permalink decryption or signature
// error.
func IsDecryptionError(err error) bool {
	return errors.Is(err, ErrDecryptFailed) || errors.Is(err, ErrSignatureInvalid)
}

// IsInvalidFormat checks if err is a malformed permalink.
func IsInvalidFormat(err error) bool {
	return errors.Is(err, ErrInvalidFormat)
}

// closest returns the candidate with the smallest edit distance to s, or ""
// if nothing is reasonably close.
func closest(s string, candidates []string) string {
	best, bestDist := "", -1
	sorted := append([]string(nil), candidates...)
	sort.Strings(sorted)
	for _, c := range sorted {
		d := levenshtein.ComputeDistance(strings.ToLower(s), strings.ToLower(c))
		if bestDist < 0 || d < bestDist {
			best, bestDist = c, d
		}
	}
	if bestDist < 0 || bestDist > len(s)/2+1 {
		return ""
	}
	return best
}
