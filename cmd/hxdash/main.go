// Command hxdash serves and exports the demo explainer dashboard.
//
//	hxdash serve                      live dashboard on :8050
//	hxdash schema --defaults > s.yaml default snapshot to edit
//	hxdash export s.yaml -o out.html  static report of a snapshot
//	hxdash permalink encode s.yaml    permalink token for a snapshot
package main

import (
	"os"
)

const version = "0.1.0"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
