package cli

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ameobea/noise-asmjs/internal/store"
)

func TestRun_PrintsTrace(t *testing.T) {
	out, err := execute(t, "run", scenario("replace-module.yaml"))
	require.NoError(t, err)
	assert.Contains(t, out, "1. replace root/noiseModule[1] with Constant\n")
	assert.Contains(t, out, "     delete_node coords=[] index=1 status=0\n")
	assert.Contains(t, out, "     add_node coords=[] index=1 status=0\n")
	assert.Contains(t, out, "  Constant\n")
	assert.Contains(t, out, "✓ replace-module")
}

func TestRun_Metrics(t *testing.T) {
	out, err := execute(t, "run", "--metrics", scenario("replace-module.yaml"))
	require.NoError(t, err)
	assert.Contains(t, out, "metrics:\n")
	assert.Contains(t, out, `  noisecomp_engine_ops_total{kind="delete_node",status="ok"} 1`+"\n")

	out, err = execute(t, "--format", "json", "run", "--metrics", scenario("replace-module.yaml"))
	require.NoError(t, err)
	var res RunResult
	decodeResponse(t, out, &res)
	assert.Equal(t, float64(3), res.Metrics["noisecomp_engine_commits_total"], "load, replace, set")
	assert.Equal(t, float64(1), res.Metrics[`noisecomp_engine_ops_total{kind="add_node",status="ok"}`])
}

func TestRun_NoMetricsByDefault(t *testing.T) {
	out, err := execute(t, "run", scenario("replace-module.yaml"))
	require.NoError(t, err)
	assert.NotContains(t, out, "metrics:")
}

func TestRun_SaveNeedsDB(t *testing.T) {
	_, err := execute(t, "run", "--save", "x", scenario("replace-module.yaml"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestRun_MissingScenario(t *testing.T) {
	_, err := execute(t, "run", scenario("nope.yaml"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestRun_JournalSaveAndReplay(t *testing.T) {
	db := tempDB(t)

	out, err := execute(t, "--format", "json", "run", "--db", db, "--save", "replaced", scenario("replace-module.yaml"))
	require.NoError(t, err)
	var first RunResult
	decodeResponse(t, out, &first)
	assert.True(t, first.Pass)
	assert.Equal(t, "replaced", first.Saved)
	// Load, replace, set.
	assert.Equal(t, int64(3), first.LastSeq)

	// A second run continues the journal.
	out, err = execute(t, "--format", "json", "run", "--db", db, scenario("add-transformation.yaml"))
	require.NoError(t, err)
	var second RunResult
	decodeResponse(t, out, &second)
	assert.Equal(t, int64(5), second.LastSeq)

	st, err := store.Open(db)
	require.NoError(t, err)
	commits, err := st.ReadCommits(context.Background(), 1)
	require.NoError(t, err)
	assert.Len(t, commits, 5)
	_, info, err := st.LoadComposition(context.Background(), "replaced")
	require.NoError(t, err)
	assert.Equal(t, int64(3), info.SavedSeq)
	require.NoError(t, st.Close())

	out, err = execute(t, "--format", "json", "replay", "--db", db)
	require.NoError(t, err)
	var replay ReplayOutput
	resp := decodeResponse(t, out, &replay)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 5, replay.Commits)
	assert.Empty(t, replay.Mismatches)
	// The second run started from the default tree again.
	assert.Equal(t, "Composed (average) +zoomScale\n  Fbm +scaleAll\n  Billow\n", replay.Tree)

	out, err = execute(t, "replay", "--db", db, "--from", "4")
	require.NoError(t, err)
	assert.Contains(t, out, "2 commit(s)")
	assert.Contains(t, out, "✓ All ops reproduced")
}

func TestReplay_EmptyJournal(t *testing.T) {
	out, err := execute(t, "replay", "--db", tempDB(t))
	require.NoError(t, err)
	assert.Contains(t, out, "No commits found")
}
