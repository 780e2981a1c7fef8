// Package orchestrator runs the artifact creation graph for one work item.
//
// Steps and their dependencies:
//
//	A  create ticket
//	B  create implementation plan page        (links A)
//	E  create QA plan page                    (links A, B; back-patches B)
//	C  link the ticket to B and E             (requires A)
//	D  create branch                          (independent, runs concurrently)
//
// Each step records exactly one result in a shared [StepContext]. A failed
// step never aborts its siblings: later steps run with whatever references
// exist and render missing links as "TBD". Step C is the exception; without
// a ticket there is nothing to link, so it does not run at all and leaves no
// entry in the context.
//
// Steps whose target is not configured are skipped without error.
package orchestrator
