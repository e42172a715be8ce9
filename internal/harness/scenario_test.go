package harness

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadScenario_ResolvesComposition(t *testing.T) {
	s, err := LoadScenario(filepath.Join("testdata", "scenarios", "compose-root.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "compose-root", s.Name)
	assert.Equal(t, filepath.Join("testdata", "compositions", "leaf-billow.yaml"), s.Composition)
	require.Len(t, s.Steps, 1)
	assert.Equal(t, "set", s.Steps[0].Kind())
	assert.Equal(t, "set root moduleType=Composed", s.Steps[0].String())
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join("testdata", "scenarios", "nope.yaml"))
	assert.Error(t, err)
}

func TestParseScenario_Rejects(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{
			name: "unknown field",
			yaml: "name: x\ndescription: y\nstep: []\n",
			want: "field step not found",
		},
		{
			name: "missing name",
			yaml: "description: y\nsteps: [{begin: true}]\n",
			want: "name is required",
		},
		{
			name: "no steps",
			yaml: "name: x\ndescription: y\n",
			want: "steps list is required",
		},
		{
			name: "two actions",
			yaml: "name: x\ndescription: y\nsteps: [{begin: true, end: true}]\n",
			want: "steps[0]: exactly one action",
		},
		{
			name: "add without module",
			yaml: "name: x\ndescription: y\nsteps: [{add: {parent: root}}]\n",
			want: "exactly one of module and transformation",
		},
		{
			name: "null setting value",
			yaml: "name: x\ndescription: y\nsteps: [{set: {node: root, key: k}}]\n",
			want: "null is not a valid setting value",
		},
		{
			name: "unknown fail_on kind",
			yaml: "name: x\ndescription: y\nfail_on: [explode]\nsteps: [{begin: true}]\n",
			want: `unknown op kind "explode"`,
		},
		{
			name: "unknown assertion",
			yaml: "name: x\ndescription: y\nsteps: [{begin: true}]\nassertions: [{type: vibes}]\n",
			want: `unknown assertion type "vibes"`,
		},
		{
			name: "op_count without count",
			yaml: "name: x\ndescription: y\nsteps: [{begin: true}]\nassertions: [{type: op_count}]\n",
			want: "non-negative count is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestStep_String(t *testing.T) {
	two := 2
	tests := []struct {
		step Step
		want string
	}{
		{Step{Begin: true}, "begin"},
		{Step{Add: &AddStep{Parent: "root", Module: "Fbm", Index: &two}}, "add Fbm to root at 2"},
		{Step{Add: &AddStep{Parent: "v/inputTransformations", Transformation: "honf"}}, "add honf to v/inputTransformations"},
		{Step{Set: &SetStep{Node: "root", Key: "enabled", Value: true}}, "set root enabled=true"},
		{Step{Replace: &ReplaceStep{Node: "root/noiseModule[1]", Module: "Value"}}, "replace root/noiseModule[1] with Value"},
		{Step{Delete: &NodeStep{Node: "n-0001"}}, "delete n-0001"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.step.String())
	}
}
