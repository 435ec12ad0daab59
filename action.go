package hxdash

import (
	"html"
	"sort"
	"strings"

	"github.com/a-h/templ"
)

// Paths of the live callback endpoints, relative to the handler mount point.
const (
	PathInit      = "/_cb/init"
	PathSet       = "/_cb/set"
	PathExport    = "/_export"
	PathState     = "/_state"
	PathPermalink = "/_permalink"
	PathLink      = "/p/"
)

// ControlAttrs builds the HTMX attributes that post a control's value to
// the dashboard whenever it changes.
//
// The element id travels in the HX-Trigger header and names the channel;
// hx-include picks up the control's inputs (a checklist is a container of
// checkboxes). The response carries only out-of-band swaps, so the control
// itself swaps nothing.
func ControlAttrs(basePath, id string) templ.Attributes {
	return templ.Attributes{
		"hx-post":    basePath + PathSet,
		"hx-trigger": "change",
		"hx-include": "#" + id,
		"hx-swap":    string(SwapNone),
	}
}

// ResetAttrs builds the attributes of a control that restarts the session
// from the default state.
func ResetAttrs(basePath string) templ.Attributes {
	return templ.Attributes{
		"hx-post": basePath + PathInit,
		"hx-swap": string(SwapNone),
	}
}

// PermalinkAttrs builds the attributes of a control that fetches a permalink
// for the current session into the element with id target.
func PermalinkAttrs(basePath, target string) templ.Attributes {
	return templ.Attributes{
		"hx-get":    basePath + PathPermalink,
		"hx-target": "#" + target,
		"hx-swap":   string(SwapInner),
	}
}

// attrString renders string attributes in key order, for hand-written
// markup outside the render tree.
func attrString(attrs templ.Attributes) string {
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var sb strings.Builder
	for _, k := range keys {
		v, ok := attrs[k].(string)
		if !ok {
			continue
		}
		sb.WriteString(" " + k + `="` + html.EscapeString(v) + `"`)
	}
	return sb.String()
}
