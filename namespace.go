package hxdash

import (
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// tokenLength is the number of hex characters in a generated name.
const tokenLength = 8

// maxGenerateAttempts bounds regeneration on collision. Hitting it means the
// generator is broken (tests inject constant generators to exercise this).
const maxGenerateAttempts = 64

// Namespace issues component names that are unique within one dashboard.
//
// Channel ids are built by concatenating a purpose prefix with a component
// name, so two live components sharing a name would silently cross-wire
// their controls. Namespace is owned by the dashboard builder rather than
// being process-global, which keeps uniqueness testable and prevents leakage
// between dashboards in the same process.
//
// Namespace is safe for concurrent use.
type Namespace struct {
	mu     sync.Mutex
	issued map[string]int // name -> number of holders
	gen    func() string
}

// NamespaceOption configures a Namespace.
type NamespaceOption func(*Namespace)

// WithGenerator replaces the random token generator.
func WithGenerator(gen func() string) NamespaceOption {
	return func(ns *Namespace) {
		ns.gen = gen
	}
}

// NewNamespace creates an empty namespace.
func NewNamespace(opts ...NamespaceOption) *Namespace {
	ns := &Namespace{
		issued: make(map[string]int),
		gen:    randomToken,
	}
	for _, opt := range opts {
		opt(ns)
	}
	return ns
}

// Allocate registers a component name. An empty name gets a random token,
// regenerated until it is unused. A caller-supplied name must be a valid
// name (see ValidName) not issued before; otherwise Allocate fails with a
// ConfigurationError. Use AllocateShared to opt in to co-referencing state.
func (ns *Namespace) Allocate(name string) (string, error) {
	if name != "" {
		if err := checkName(name); err != nil {
			return "", err
		}
	}
	ns.mu.Lock()
	defer ns.mu.Unlock()

	if name != "" {
		if ns.issued[name] > 0 {
			return "", configErrorf("", "component name %q is already in use", name)
		}
		ns.issued[name] = 1
		return name, nil
	}

	for i := 0; i < maxGenerateAttempts; i++ {
		candidate := ns.gen()
		if candidate == "" || ns.issued[candidate] > 0 {
			continue
		}
		ns.issued[candidate] = 1
		return candidate, nil
	}
	return "", configErrorf("", "could not generate a unique component name after %d attempts", maxGenerateAttempts)
}

// AllocateShared registers name even if it is already held. Components
// sharing a name share every channel whose prefix they have in common.
func (ns *Namespace) AllocateShared(name string) (string, error) {
	if name == "" {
		return "", configErrorf("", "a shared component name must be explicit")
	}
	if err := checkName(name); err != nil {
		return "", err
	}
	ns.mu.Lock()
	defer ns.mu.Unlock()
	ns.issued[name]++
	return name, nil
}

// Issued returns the sorted names handed out so far.
func (ns *Namespace) Issued() []string {
	ns.mu.Lock()
	defer ns.mu.Unlock()
	out := make([]string, 0, len(ns.issued))
	for n := range ns.issued {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Has reports whether name has been issued.
func (ns *Namespace) Has(name string) bool {
	ns.mu.Lock()
	defer ns.mu.Unlock()
	return ns.issued[name] > 0
}

// ValidName reports whether name may be used as a component name. Names end
// up in channel ids, state keys and CSS selectors, so only ASCII letters,
// digits, '-' and '_' are allowed. A '.' would be read back as an attribute
// separator by ParseKey.
func ValidName(name string) bool {
	if name == "" {
		return false
	}
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
		default:
			return false
		}
	}
	return true
}

func checkName(name string) error {
	if !ValidName(name) {
		return configErrorf("", "component name %q may only contain letters, digits, '-' and '_'", name)
	}
	return nil
}

// ChannelID derives the channel id for a purpose prefix and component name.
// Prefixes carry their trailing separator, e.g. "importances-depth-".
func ChannelID(prefix, name string) string {
	return prefix + name
}

func randomToken() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:tokenLength]
}
