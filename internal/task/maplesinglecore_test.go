package task

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestForceSingleCoreMapleRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "lib.mpl")
	original := "restart;\nkernelopts(numcpus=8);\nf := x -> x^2;\n"
	require.NoError(t, os.WriteFile(path, []byte(original), 0644))

	require.NoError(t, ForceSingleCoreMaple(path))

	patched, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(patched), "kernelopts(numcpus=1)")
	require.NotContains(t, string(patched), "numcpus=8")

	require.NoError(t, RestoreSingleCoreMaple(path))
	restored, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, original, string(restored))
}

func TestForceSingleCoreMapleNoMarker(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "lib.mpl")
	original := "restart;\nf := x -> x^2;\n"
	require.NoError(t, os.WriteFile(path, []byte(original), 0644))

	require.NoError(t, ForceSingleCoreMaple(path))

	_, err := os.Stat(path + ".bak")
	require.True(t, os.IsNotExist(err))
}
