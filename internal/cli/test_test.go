package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// copyScenarios copies the test scenarios into a temp dir, without golden
// files.
func copyScenarios(t *testing.T, names ...string) string {
	t.Helper()
	dir := t.TempDir()
	for _, name := range names {
		data, err := os.ReadFile(scenario(name))
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), data, 0o644))
	}
	return dir
}

func TestTest_AllPass(t *testing.T) {
	out, err := execute(t, "test", filepath.Join("testdata", "scenarios"))
	require.NoError(t, err)
	assert.Contains(t, out, "✓ add-transformation")
	assert.Contains(t, out, "✓ replace-module")
	assert.Contains(t, out, "2 passed, 0 failed, 2 total")
}

func TestTest_GoldenIsUsed(t *testing.T) {
	out, err := execute(t, "--format", "json", "test", filepath.Join("testdata", "scenarios"), "--filter", "add-*")
	require.NoError(t, err)

	var result TestResult
	decodeResponse(t, out, &result)
	require.Len(t, result.Scenarios, 1)
	assert.True(t, result.Scenarios[0].Golden)
	assert.True(t, result.Scenarios[0].Pass)
}

func TestTest_UpdateThenMismatch(t *testing.T) {
	dir := copyScenarios(t, "add-transformation.yaml")

	_, err := execute(t, "test", dir, "--update")
	require.NoError(t, err)
	golden := filepath.Join(dir, "golden", "add-transformation.golden")
	written, err := os.ReadFile(golden)
	require.NoError(t, err)
	want, err := os.ReadFile(filepath.Join("testdata", "scenarios", "golden", "add-transformation.golden"))
	require.NoError(t, err)
	assert.Equal(t, string(want), string(written))

	require.NoError(t, os.WriteFile(golden, []byte(`{"trace":[]}`), 0o644))
	out, err := execute(t, "test", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "trace does not match golden file")
}

func TestTest_FailingAssertion(t *testing.T) {
	dir := t.TempDir()
	bad := "name: wrong\ndescription: expects the wrong count\nsteps: [{delete: {node: root/noiseModule[0]}}]\n" +
		"assertions: [{type: module_count, node: root, count: 7}]\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "wrong.yaml"), []byte(bad), 0o644))

	out, err := execute(t, "test", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ wrong")
	assert.Contains(t, out, "has 1 modules, want 7")
}

func TestTest_MissingDir(t *testing.T) {
	_, err := execute(t, "test", filepath.Join("testdata", "nope"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
