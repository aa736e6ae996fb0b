package agentdir_test

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaykit/agentcore/agent"
	"github.com/relaykit/agentcore/agentdir"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestScan_ExtractsMarkersFromNestedDirectories(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "greeter.go", "// @name greeter\n// @description says hello\npackage greeter\n")
	writeFile(t, root, filepath.Join("sub", "researcher.md"), "name: researcher\ndescription: looks things up\n")
	writeFile(t, root, "README.txt", "just some notes, no markers here\n")

	manifests, err := agentdir.NewScanner(root).Scan(context.Background())
	require.NoError(t, err)

	var names []string
	for _, m := range manifests {
		names = append(names, m.Name)
	}
	sort.Strings(names)
	assert.Equal(t, []string{"greeter", "researcher"}, names)
}

func TestScan_SkipsFilesWithUnrecognizedExtensions(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "notes.bin", "@name hidden\n")

	manifests, err := agentdir.NewScanner(root).Scan(context.Background())
	require.NoError(t, err)
	assert.Empty(t, manifests)
}

func TestRegistry_BuildsLazilyAndCaches(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "greeter.go", "// @name greeter\n// @description says hello\n")

	manifests, err := agentdir.NewScanner(root).Scan(context.Background())
	require.NoError(t, err)

	var builds int
	reg := agentdir.NewRegistry(manifests, func(m agentdir.Manifest) (agent.Agent, error) {
		builds++
		return agent.New(agent.Config{Name: m.Name, Description: m.Description}), nil
	})

	assert.Equal(t, 0, builds)
	a1, err := reg.Get("greeter")
	require.NoError(t, err)
	a2, err := reg.Get("greeter")
	require.NoError(t, err)
	assert.Same(t, a1, a2)
	assert.Equal(t, 1, builds)
}

func TestRegistry_GetUnknownNameErrors(t *testing.T) {
	reg := agentdir.NewRegistry(nil, func(m agentdir.Manifest) (agent.Agent, error) {
		return nil, nil
	})
	_, err := reg.Get("missing")
	assert.Error(t, err)
}
