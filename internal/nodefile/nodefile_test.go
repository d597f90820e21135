package nodefile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oscarsaleta/PVMantz/internal/protocol"
)

func TestReadNodeFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nodes.txt")
	require.NoError(t, os.WriteFile(path, []byte("n1 2\nn2 4\n\n"), 0644))

	nodes, err := Read(path)
	require.NoError(t, err)
	require.Equal(t, []protocol.NodeSpec{{Host: "n1", Cores: 2}, {Host: "n2", Cores: 4}}, nodes)
	require.Equal(t, 6, TotalCores(nodes))
}

func TestReadNodeFileRejectsBadLine(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nodes.txt")
	require.NoError(t, os.WriteFile(path, []byte("n1\n"), 0644))

	_, err := Read(path)
	require.Error(t, err)
}

func TestReadNodeFileRejectsEmpty(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nodes.txt")
	require.NoError(t, os.WriteFile(path, []byte(""), 0644))

	_, err := Read(path)
	require.Error(t, err)
}
