package prerequisites

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheck_Found(t *testing.T) {
	var found string
	for _, tool := range []string{"sh", "ls", "cat"} {
		results := Check([]Tool{{Name: tool}})
		if results.Results[0].Found {
			found = tool
			break
		}
	}
	if found == "" {
		t.Skip("no common tools found in PATH, skipping test")
	}

	results := Check([]Tool{{Name: found, Required: true}})

	require.Len(t, results.Results, 1)
	assert.True(t, results.Results[0].Found)
	assert.NotEmpty(t, results.Results[0].Path)
	assert.False(t, results.HasErrors())
	assert.NoError(t, results.Error())
}

func TestCheck_MissingRequired(t *testing.T) {
	results := CheckCluster("nonexistent-k3s-xyz123", false)

	require.Len(t, results.Missing, 1)
	assert.True(t, results.HasErrors())
	err := results.Error()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nonexistent-k3s-xyz123")
	assert.Contains(t, err.Error(), "https://docs.k3s.io/installation")
}

func TestCheck_MissingOptional(t *testing.T) {
	results := Check([]Tool{{Name: "nonexistent-tool-xyz123", Required: false}})

	assert.Len(t, results.Missing, 1)
	assert.False(t, results.HasErrors())
	assert.NoError(t, results.Error())
}

func TestClusterTools(t *testing.T) {
	tools := ClusterTools("k3s")
	require.Len(t, tools, 1)
	assert.Equal(t, "k3s", tools[0].Name)
	assert.True(t, tools[0].Required)

	systemd := SystemdTools()
	require.Len(t, systemd, 1)
	assert.Equal(t, "systemctl", systemd[0].Name)
	assert.True(t, systemd[0].Required)
}
