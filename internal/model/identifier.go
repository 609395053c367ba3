package model

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

// Identifier describes one benchmark configuration. Name, Environment and
// Params form the canonical key; the remaining fields are descriptive and do
// not take part in equality.
type Identifier struct {
	Name        string            `json:"name"`
	Environment string            `json:"environment,omitempty"`
	Params      map[string]string `json:"params,omitempty"`

	// Timeout overrides the orchestrator's default timeout when set.
	Timeout     *time.Duration `json:"timeout,omitempty"`
	Description string         `json:"description,omitempty"`

	// WorkDir is the designated working directory of the benchmark. It is
	// assigned during materialization.
	WorkDir string `json:"workdir,omitempty"`
}

// TimeoutOverride returns the identifier's own timeout, if it has a positive one.
func (id Identifier) TimeoutOverride() (time.Duration, bool) {
	if id.Timeout == nil || *id.Timeout <= 0 {
		return 0, false
	}
	return *id.Timeout, true
}

// String renders the identifier for log lines and error messages.
func (id Identifier) String() string {
	var b strings.Builder
	b.WriteString(id.Name)
	if id.Environment != "" {
		b.WriteString("@")
		b.WriteString(id.Environment)
	}
	if len(id.Params) > 0 {
		b.WriteString("[")
		for i, k := range slices.Sorted(maps.Keys(id.Params)) {
			if i > 0 {
				b.WriteString(",")
			}
			fmt.Fprintf(&b, "%s=%s", k, id.Params[k])
		}
		b.WriteString("]")
	}
	return b.String()
}

// keyFields is the projection of an Identifier that is hashed into its key.
type keyFields struct {
	Name        string            `json:"name"`
	Environment string            `json:"environment"`
	Params      map[string]string `json:"params"`
}

// rawKeyPrefix marks keys of identifiers holding invalid UTF-8, which JSON
// would silently rewrite to U+FFFD.
const rawKeyPrefix = "raw:"

// Key returns the canonical key of id. It is the JSON encoding of the key
// fields; encoding/json emits map keys in sorted order, so semantically equal
// identifiers always produce the same key. Identifiers with invalid UTF-8
// get a Go-quoted form instead so distinct byte strings never share a key.
func Key(id Identifier) string {
	if !validUTF8(id) {
		return rawKey(id)
	}
	params := id.Params
	if params == nil {
		params = map[string]string{}
	}
	data, err := json.Marshal(keyFields{
		Name:        id.Name,
		Environment: id.Environment,
		Params:      params,
	})
	if err != nil {
		// Strings and string maps always encode.
		panic(fmt.Sprintf("encode identifier key: %v", err))
	}
	return string(data)
}

func validUTF8(id Identifier) bool {
	if !utf8.ValidString(id.Name) || !utf8.ValidString(id.Environment) {
		return false
	}
	for k, v := range id.Params {
		if !utf8.ValidString(k) || !utf8.ValidString(v) {
			return false
		}
	}
	return true
}

func rawKey(id Identifier) string {
	var b strings.Builder
	b.WriteString(rawKeyPrefix)
	b.WriteString(strconv.Quote(id.Name))
	b.WriteByte(' ')
	b.WriteString(strconv.Quote(id.Environment))
	b.WriteString(" {")
	for i, k := range slices.Sorted(maps.Keys(id.Params)) {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.Quote(k))
		b.WriteByte(':')
		b.WriteString(strconv.Quote(id.Params[k]))
	}
	b.WriteByte('}')
	return b.String()
}
