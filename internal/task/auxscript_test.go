package task

import (
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oscarsaleta/PVMantz/internal/protocol"
)

func TestWriteAuxScriptSentinel(t *testing.T) {
	dir := t.TempDir()
	path, err := WriteAuxScript(protocol.Pari, 5, "1,2", "lib.gp", dir)
	require.NoError(t, err)
	require.Contains(t, path, "auxprog")

	contents, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(contents), "taskId = 5")
}

func TestWriteAuxScriptNoneForC(t *testing.T) {
	dir := t.TempDir()
	path, err := WriteAuxScript(protocol.C, 5, "1,2", "prog", dir)
	require.NoError(t, err)
	require.Empty(t, path)
}

func TestWriteAuxScriptDistinctPaths(t *testing.T) {
	dir := t.TempDir()
	p1, err := WriteAuxScript(protocol.Sage, 1, "a", "lib.sage", dir)
	require.NoError(t, err)
	p2, err := WriteAuxScript(protocol.Sage, 1, "a", "lib.sage", dir)
	require.NoError(t, err)
	require.NotEqual(t, p1, p2)
	require.True(t, strings.HasSuffix(p1, ".sage"))
}
