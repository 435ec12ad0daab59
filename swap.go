package hxdash

// SwapMode defines HTMX swap strategies for how response HTML replaces the
// target.
//
// See https://htmx.org/attributes/hx-swap/ for visual examples.
type SwapMode string

const (
	// SwapOuter replaces the entire element including its tag. Live updates
	// re-render changed elements this way.
	SwapOuter SwapMode = "outerHTML"

	// SwapInner replaces only the element's contents.
	SwapInner SwapMode = "innerHTML"

	// SwapBeforeEnd appends to the target's contents. Notices use it to add
	// toasts.
	SwapBeforeEnd SwapMode = "beforeend"

	// SwapNone discards the response body except out-of-band swaps.
	// Controls post with it since every update arrives out of band.
	SwapNone SwapMode = "none"
)

// oobAttr is the hx-swap-oob value for a swap mode.
func oobAttr(mode SwapMode) string {
	if mode == SwapOuter {
		return "true"
	}
	return string(mode)
}
