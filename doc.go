// Package hxdash assembles model-explainer dashboards out of reusable
// components that share state through named channels.
//
// A component owns a name, drawn from the dashboard's Namespace, and
// derives the id of every control it renders from a purpose prefix plus
// that name ("importances-depth-" + "a1b2c3d4"). The same ids address
// state in both execution modes:
//
//   - live: the dashboard serves the layout over HTTP; HTMX posts control
//     changes back, registered handlers recompute their outputs, and the
//     changed elements return as out-of-band swaps
//   - batch: a flat StateDict snapshot is rendered into one standalone
//     document with no handlers involved
//
// # Components
//
// Concrete components embed *Base and implement Layout and ToHTML:
//
//	type Importances struct {
//	    *hxdash.Base
//	}
//
// Base carries the declared state schema (StateTuples, StateArgs), the
// declared dependencies (RequireDependencies, Artifact), composition of
// child components (Compose), suppression of a child's own handlers when
// the parent drives it (ExcludeCallbacks), and public channel properties
// that connectors look up (Publish).
//
// # Handlers
//
// Handlers are pure functions from channel values to a Result:
//
//	b.Register(rt, hxdash.Handler{
//	    Triggers: []hxdash.Channel{b.Ch("depth"), b.Ch("pos_label")},
//	    Outputs:  []hxdash.Channel{graph},
//	    Func: func(cc *hxdash.CallbackContext, in hxdash.Values) hxdash.Result {
//	        ...
//	        return hxdash.Update().Set(graph, fig)
//	    },
//	})
//
// A handler whose inputs are inconsistent returns NoUpdate, leaving its
// outputs as they are. Panics and Fail results are contained and logged;
// they never stop other handlers.
//
// # Connectors
//
// Connectors broadcast one channel to several others without the
// components knowing about each other:
//
//	hxdash.NewIndexConnector(hxdash.Ref(selector, hxdash.PropIndex),
//	    hxdash.RefsOf(hxdash.PropIndex, summary, contributions), model)
//
// # Dependencies
//
// The Registrar computes each (model, dependency, label) artifact once, on
// first use by a rendering component, and serves it from memory afterwards.
// A dependency the model cannot compute yields a CapabilityMissingError,
// which components turn into an in-place placeholder.
//
// # Security Model
//
// Permalinks carry a snapshot signed with HMAC (readable, tamper-proof) or,
// with WithEncryptedPermalinks, encrypted with AES-GCM. Mutating requests
// require the HX-Request header, which browsers cannot send cross-origin
// without a preflight.
package hxdash
