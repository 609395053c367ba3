// Package engine provides the benchmark orchestrator. It filters out
// identifiers that already have a stored record, materializes the rest up
// front, executes them one at a time under a timeout, and persists each
// classified result before handing it to the caller.
package engine
