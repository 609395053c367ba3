package suite

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"regexp"
	"slices"

	"github.com/seantiz/benchkit/internal/backend"
	"github.com/seantiz/benchkit/internal/backend/process"
	"github.com/seantiz/benchkit/internal/model"
)

const (
	// IdentifierFile is written into every benchmark directory.
	IdentifierFile = "identifier.json"

	// LogFile receives the benchmark's combined output.
	LogFile = "output.log"
)

var unsafePathChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// Materializer prepares suite benchmarks for execution by the process backend.
type Materializer struct {
	suite *Suite
}

// NewMaterializer returns a Materializer for identifiers produced by s.
func NewMaterializer(s *Suite) *Materializer {
	return &Materializer{suite: s}
}

// Materialize creates the benchmark's working directory under root, records
// the identifier there and builds the command to run. Its signature matches
// engine.MaterializeFunc.
func (m *Materializer) Materialize(_ context.Context, id model.Identifier, root string) (model.Identifier, backend.Instance, error) {
	b, ok := m.suite.Lookup(id.Name)
	if !ok {
		return id, nil, fmt.Errorf("benchmark %q is not defined in suite %q", id.Name, m.suite.Name)
	}

	dir := filepath.Join(root, DirName(id))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return id, nil, fmt.Errorf("creating benchmark directory: %w", err)
	}
	id.WorkDir = dir

	data, err := json.MarshalIndent(id, "", "  ")
	if err != nil {
		return id, nil, fmt.Errorf("encoding identifier: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, IdentifierFile), append(data, '\n'), 0o644); err != nil {
		return id, nil, fmt.Errorf("writing identifier: %w", err)
	}

	vars := map[string]string{
		"name":        id.Name,
		"environment": id.Environment,
		"workdir":     dir,
	}
	maps.Copy(vars, id.Params)
	expand := func(s string) string {
		return os.Expand(s, func(name string) string { return vars[name] })
	}

	cmd := process.Command{
		Dir:     dir,
		LogPath: filepath.Join(dir, LogFile),
	}
	for _, arg := range b.Command {
		cmd.Argv = append(cmd.Argv, expand(arg))
	}
	for _, k := range slices.Sorted(maps.Keys(b.Env)) {
		cmd.Env = append(cmd.Env, k+"="+expand(b.Env[k]))
	}
	if b.Dir != "" {
		cmd.Dir = expand(b.Dir)
		if !filepath.IsAbs(cmd.Dir) {
			cmd.Dir = filepath.Join(m.suite.baseDir, cmd.Dir)
		}
	}

	return id, cmd, nil
}

// DirName returns the directory name used for id: its sanitized name followed
// by a short hash of its canonical key.
func DirName(id model.Identifier) string {
	sum := sha256.Sum256([]byte(model.Key(id)))
	name := unsafePathChars.ReplaceAllString(id.Name, "_")
	return name + "-" + hex.EncodeToString(sum[:6])
}
