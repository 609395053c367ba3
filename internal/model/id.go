package model

import "github.com/oklog/ulid/v2"

// NewRunID generates a ULID identifying one orchestrator run. Records written
// during the run carry it so a results listing can group them.
func NewRunID() string {
	return ulid.Make().String()
}
