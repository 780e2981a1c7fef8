// Command workbridge turns a selected design component into linked
// delivery artifacts: a ticket, an implementation plan, a QA plan and a
// feature branch.
//
//	workbridge run --request item.json
//	workbridge serve
//	workbridge config check
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
