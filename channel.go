package hxdash

import (
	"sort"
	"strings"
)

// DefaultAttr is the attribute of a control's current value.
const DefaultAttr = "value"

// Channel addresses one piece of reactive state: an attribute of an element
// identified by ID.
type Channel struct {
	ID   string
	Attr string
}

// ValueOf is the value channel of the element with the given id.
func ValueOf(id string) Channel {
	return Channel{ID: id, Attr: DefaultAttr}
}

// Key is the channel's snapshot key: the bare id for value channels,
// "id.attr" otherwise.
func (c Channel) Key() string {
	if c.Attr == "" || c.Attr == DefaultAttr {
		return c.ID
	}
	return c.ID + "." + c.Attr
}

func (c Channel) String() string {
	attr := c.Attr
	if attr == "" {
		attr = DefaultAttr
	}
	return c.ID + "." + attr
}

// ParseKey is the inverse of Key.
func ParseKey(key string) Channel {
	// ids themselves never contain dots; a dot always separates the attr.
	if i := strings.LastIndexByte(key, '.'); i > 0 {
		return Channel{ID: key[:i], Attr: key[i+1:]}
	}
	return ValueOf(key)
}

func normalize(c Channel) Channel {
	if c.Attr == "" {
		c.Attr = DefaultAttr
	}
	return c
}

// sortChannels sorts and de-duplicates channels in place.
func sortChannels(chs []Channel) []Channel {
	if len(chs) == 0 {
		return chs
	}
	for i := range chs {
		chs[i] = normalize(chs[i])
	}
	sort.Slice(chs, func(i, j int) bool {
		if chs[i].ID != chs[j].ID {
			return chs[i].ID < chs[j].ID
		}
		return chs[i].Attr < chs[j].Attr
	})
	out := chs[:1]
	for _, c := range chs[1:] {
		if c != out[len(out)-1] {
			out = append(out, c)
		}
	}
	return out
}

// Kind is the value type of a state field.
type Kind int

const (
	KindAny Kind = iota
	KindString
	KindInt
	KindFloat
	KindBool
	KindStrings
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindBool:
		return "bool"
	case KindStrings:
		return "[]string"
	}
	return "any"
}

// StateField declares one logical field a component exposes in snapshots.
// The instance channel id is Prefix concatenated with the component name.
type StateField struct {
	Name     string
	Prefix   string
	Attr     string
	Kind     Kind
	Optional bool
}

// Field declares a value field.
func Field(name, prefix string, kind Kind) StateField {
	return StateField{Name: name, Prefix: prefix, Attr: DefaultAttr, Kind: kind}
}

// Opt marks the field optional: a snapshot lacking it yields the zero value
// instead of a MissingStateError.
func (f StateField) Opt() StateField {
	f.Optional = true
	return f
}

// On returns the field bound to a different attribute.
func (f StateField) On(attr string) StateField {
	f.Attr = attr
	return f
}

// Channel is the field's channel for the given component name.
func (f StateField) Channel(name string) Channel {
	attr := f.Attr
	if attr == "" {
		attr = DefaultAttr
	}
	return Channel{ID: ChannelID(f.Prefix, name), Attr: attr}
}

// BoundField is a state field resolved for a component instance.
type BoundField struct {
	StateField
	Component string
	Ch        Channel
}

// Schema is the set of state fields a component class declares.
type Schema []StateField

func (s Schema) validate(component string) error {
	seen := make(map[string]bool, len(s))
	// Two fields on one (prefix, attr) resolve to the same channel for every
	// instance.
	bound := make(map[Channel]string, len(s))
	for _, f := range s {
		if f.Name == "" {
			return configErrorf(component, "state field with prefix %q has no name", f.Prefix)
		}
		if f.Prefix == "" {
			return configErrorf(component, "state field %q has no channel prefix", f.Name)
		}
		if seen[f.Name] {
			return configErrorf(component, "state field %q declared twice", f.Name)
		}
		seen[f.Name] = true
		ch := normalize(Channel{ID: f.Prefix, Attr: f.Attr})
		if other, ok := bound[ch]; ok {
			return configErrorf(component, "state fields %q and %q share channel prefix %q", other, f.Name, f.Prefix)
		}
		bound[ch] = f.Name
	}
	return nil
}
