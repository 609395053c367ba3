package suite

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seantiz/benchkit/internal/backend/process"
	"github.com/seantiz/benchkit/internal/model"
)

const sortSuite = `
name: sorting
benchmarks:
  - name: sort
    description: sorts random input
    environments: ["go1.24", "go1.25"]
    command: ["./sort", "--size", "$size", "--algo=${algo}", "--out", "$workdir/result.txt"]
    env:
      BENCH_ENV: "$environment"
    timeout_s: 30
    matrix:
      size: ["10", "1000"]
      algo: ["quick", "merge"]
  - name: startup
    command: ["./startup"]
`

func parse(t *testing.T, doc string) *Suite {
	t.Helper()
	s, err := Parse([]byte(doc), "/suites")
	require.NoError(t, err)
	return s
}

func TestIdentifiersExpandMatrixInOrder(t *testing.T) {
	s := parse(t, sortSuite)

	ids := s.Identifiers()
	require.Len(t, ids, 2*2*2+1)

	var got []string
	for _, id := range ids {
		got = append(got, id.String())
	}
	assert.Equal(t, []string{
		"sort@go1.24[algo=quick,size=10]",
		"sort@go1.24[algo=quick,size=1000]",
		"sort@go1.24[algo=merge,size=10]",
		"sort@go1.24[algo=merge,size=1000]",
		"sort@go1.25[algo=quick,size=10]",
		"sort@go1.25[algo=quick,size=1000]",
		"sort@go1.25[algo=merge,size=10]",
		"sort@go1.25[algo=merge,size=1000]",
		"startup",
	}, got)

	require.NotNil(t, ids[0].Timeout)
	assert.Equal(t, 30*time.Second, *ids[0].Timeout)
	assert.Equal(t, "sorts random input", ids[0].Description)
	assert.Nil(t, ids[8].Timeout)
	assert.Empty(t, ids[8].Params)
}

func TestIdentifiersHaveDistinctKeys(t *testing.T) {
	s := parse(t, sortSuite)

	seen := make(map[string]bool)
	for _, id := range s.Identifiers() {
		key := model.Key(id)
		assert.False(t, seen[key], "duplicate key %s", key)
		seen[key] = true
	}
}

func TestIdentifiersAreStable(t *testing.T) {
	a := parse(t, sortSuite).Identifiers()
	b := parse(t, sortSuite).Identifiers()
	assert.Equal(t, a, b)
}

func TestParseRejectsInvalidSuites(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{"no benchmarks", "name: empty\n", "no benchmarks"},
		{"missing name", "benchmarks:\n  - command: [a]\n", "name is required"},
		{"missing command", "benchmarks:\n  - name: a\n", "command is required"},
		{"duplicate name", "benchmarks:\n  - name: a\n    command: [x]\n  - name: a\n    command: [y]\n", "more than once"},
		{"both environments", "benchmarks:\n  - name: a\n    command: [x]\n    environment: e\n    environments: [f]\n", "not both"},
		{"negative timeout", "benchmarks:\n  - name: a\n    command: [x]\n    timeout_s: -1\n", "must not be negative"},
		{"empty matrix values", "benchmarks:\n  - name: a\n    command: [x]\n    matrix:\n      n: []\n", "no values"},
		{"reserved matrix key", "benchmarks:\n  - name: a\n    command: [x]\n    matrix:\n      workdir: [\"1\"]\n", "reserved"},
		{"undefined variable", "benchmarks:\n  - name: a\n    command: [x, $size]\n", "undefined variable(s) size"},
		{"unknown field", "benchmarks:\n  - name: a\n    command: [x]\n    retries: 3\n", "retries"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc), "/suites")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadReadsFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "suite.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sortSuite), 0o644))

	s, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "sorting", s.Name)
	assert.Equal(t, dir, s.baseDir)

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestMaterializeBuildsCommand(t *testing.T) {
	s := parse(t, sortSuite)
	m := NewMaterializer(s)
	root := t.TempDir()
	id := s.Identifiers()[1] // go1.24, quick, 1000

	got, inst, err := m.Materialize(context.Background(), id, root)
	require.NoError(t, err)

	wantDir := filepath.Join(root, DirName(id))
	assert.Equal(t, wantDir, got.WorkDir)
	assert.Equal(t, model.Key(id), model.Key(got), "materialization must not change the key")

	cmd, ok := inst.(process.Command)
	require.True(t, ok, "instance = %#v, want process.Command", inst)
	assert.Equal(t, []string{"./sort", "--size", "1000", "--algo=quick", "--out", wantDir + "/result.txt"}, cmd.Argv)
	assert.Equal(t, []string{"BENCH_ENV=go1.24"}, cmd.Env)
	assert.Equal(t, wantDir, cmd.Dir)
	assert.Equal(t, filepath.Join(wantDir, LogFile), cmd.LogPath)

	data, err := os.ReadFile(filepath.Join(wantDir, IdentifierFile))
	require.NoError(t, err)
	var written model.Identifier
	require.NoError(t, json.Unmarshal(data, &written))
	assert.Equal(t, got.Name, written.Name)
	assert.Equal(t, got.Params, written.Params)
	assert.Equal(t, wantDir, written.WorkDir)
}

func TestMaterializeResolvesRelativeDir(t *testing.T) {
	s := parse(t, "benchmarks:\n  - name: a\n    command: [x]\n    dir: fixtures/$name\n")
	root := t.TempDir()

	_, inst, err := NewMaterializer(s).Materialize(context.Background(), s.Identifiers()[0], root)
	require.NoError(t, err)
	assert.Equal(t, "/suites/fixtures/a", inst.(process.Command).Dir)
}

func TestMaterializeUnknownBenchmark(t *testing.T) {
	s := parse(t, sortSuite)

	_, _, err := NewMaterializer(s).Materialize(context.Background(), model.Identifier{Name: "missing"}, t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not defined")
}

func TestDirNameIsSafeAndKeyed(t *testing.T) {
	a := model.Identifier{Name: "sort / big", Params: map[string]string{"n": "1"}}
	b := model.Identifier{Name: "sort / big", Params: map[string]string{"n": "2"}}

	assert.True(t, strings.HasPrefix(DirName(a), "sort_big-"), DirName(a))
	assert.NotContains(t, DirName(a), "/")
	assert.NotEqual(t, DirName(a), DirName(b))

	desc := a
	desc.Description = "non-key field"
	assert.Equal(t, DirName(a), DirName(desc))
}
