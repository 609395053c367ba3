// Package backend defines the interface that execution backends implement,
// along with the Registry that dispatches a materialized benchmark instance to
// the backend registered for its kind.
package backend
