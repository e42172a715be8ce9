package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ameobea/noise-asmjs/internal/schema"
)

func TestOutline_DefaultTree(t *testing.T) {
	want := "Composed Noise Module (average) +zoomScale\n" +
		"  Fractional Brownian Noise\n" +
		"  Billow Noise\n"
	assert.Equal(t, want, outline(schema.DefaultTree()))
}

func TestShow_File(t *testing.T) {
	out, err := execute(t, "show", composition("weighted.yaml"))
	require.NoError(t, err)
	assert.Contains(t, out, "Composed Noise Module (weightedAverage)")
	assert.Contains(t, out, "  Fractional Brownian Noise [fbm]\n")
	assert.Contains(t, out, "  Billow Noise [billow] +scaleAll\n")
}

func TestShow_DefaultJSON(t *testing.T) {
	out, err := execute(t, "--format", "json", "show")
	require.NoError(t, err)

	var result ShowResult
	resp := decodeResponse(t, out, &result)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "default", result.Source)
	assert.Equal(t, schema.DefaultTree().Count(), result.Nodes)
	assert.NotEmpty(t, result.Hash)
}

func TestShow_FileAndNameConflict(t *testing.T) {
	_, err := execute(t, "show", "--name", "x", composition("weighted.yaml"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
