package hxdash

import "strings"

// ChannelRef names one or more channels a connector reads or writes. It is
// a closed set of variants:
//
//	hxdash.Literal("index-abc")           // a raw channel id
//	hxdash.Ref(selector, hxdash.PropIndex) // a component's public property
//	hxdash.Refs(a, b, c)                   // a list of the above
//
// References are resolved once, when the connector is built.
type ChannelRef interface {
	resolve() ([]Channel, error)
}

type literalRef struct{ ch Channel }

type componentRef struct {
	c    Component
	prop string
}

type listRef []ChannelRef

// Literal refers to a channel by id. A "id.attr" form selects an attribute
// other than value.
func Literal(id string) ChannelRef {
	return literalRef{ch: ParseKey(id)}
}

// LiteralChannel refers to an already built channel.
func LiteralChannel(ch Channel) ChannelRef {
	return literalRef{ch: normalize(ch)}
}

// Ref refers to the channels a component publishes under prop.
func Ref(c Component, prop string) ChannelRef {
	return componentRef{c: c, prop: prop}
}

// Refs groups references. Nested lists are flattened.
func Refs(refs ...ChannelRef) ChannelRef {
	return listRef(refs)
}

// RefsOf refers to prop on each component.
func RefsOf(prop string, cs ...Component) ChannelRef {
	refs := make(listRef, len(cs))
	for i, c := range cs {
		refs[i] = Ref(c, prop)
	}
	return refs
}

func (r literalRef) resolve() ([]Channel, error) {
	if strings.TrimSpace(r.ch.ID) == "" {
		return nil, configErrorf("", "empty channel id")
	}
	return []Channel{r.ch}, nil
}

func (r componentRef) resolve() ([]Channel, error) {
	if r.c == nil {
		return nil, configErrorf("", "nil component reference for property %q", r.prop)
	}
	p, ok := r.c.(Publisher)
	if !ok {
		return nil, configErrorf(r.c.Name(), "component publishes no channels (wanted %q)", r.prop)
	}
	chs := p.PublicChannels(r.prop)
	if len(chs) == 0 {
		props := p.PublicProperties()
		msg := "component does not expose property %q"
		if s := closest(r.prop, props); s != "" {
			return nil, configErrorf(r.c.Name(), msg+"; did you mean %q?", r.prop, s)
		}
		return nil, configErrorf(r.c.Name(), msg+" (exposes %v)", r.prop, props)
	}
	return chs, nil
}

func (r listRef) resolve() ([]Channel, error) {
	var out []Channel
	for _, ref := range r {
		if ref == nil {
			return nil, configErrorf("", "nil channel reference in list")
		}
		chs, err := ref.resolve()
		if err != nil {
			return nil, err
		}
		out = append(out, chs...)
	}
	return out, nil
}

// Resolve flattens a reference into its channels, removing duplicates while
// keeping first-seen order.
func Resolve(ref ChannelRef) ([]Channel, error) {
	if ref == nil {
		return nil, configErrorf("", "nil channel reference")
	}
	chs, err := ref.resolve()
	if err != nil {
		return nil, err
	}
	return dedupe(chs), nil
}
