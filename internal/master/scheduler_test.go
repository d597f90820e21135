package master

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oscarsaleta/PVMantz/internal/protocol"
)

func writeFile(t *testing.T, path, contents string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(contents), 0644))
}

func baseConfig(t *testing.T, nodeFile, dataFile string) Config {
	outDir := t.TempDir()
	var buf bytes.Buffer
	return Config{
		TaskType:     protocol.C,
		ProgramFile:  "/bin/echo",
		DataFile:     dataFile,
		NodeFile:     nodeFile,
		OutDir:       outDir,
		ReportWriter: &buf,
	}
}

func TestHappyPathThreeTasksTwoWorkers(t *testing.T) {
	dir := t.TempDir()
	nodeFile := filepath.Join(dir, "nodes.txt")
	dataFile := filepath.Join(dir, "data.txt")
	writeFile(t, nodeFile, "n1 2\n")
	writeFile(t, dataFile, "1,a\n2,b\n3,c\n")

	cfg := baseConfig(t, nodeFile, dataFile)
	cfg.NodeFile = nodeFile
	// force localhost so transport.Spawn uses the in-process path
	overrideHostsToLocalhost(t, &cfg)

	s := New(cfg)
	summary, err := s.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 3, summary.TasksCompleted)
	require.Equal(t, 0, summary.TasksUnfinished)

	_, err = os.Stat(filepath.Join(cfg.OutDir, "unfinished_tasks.txt"))
	require.True(t, os.IsNotExist(err))
}

func TestNLessThanWAllWorkersStopped(t *testing.T) {
	dir := t.TempDir()
	nodeFile := filepath.Join(dir, "nodes.txt")
	dataFile := filepath.Join(dir, "data.txt")
	writeFile(t, nodeFile, "n1 4\n")
	writeFile(t, dataFile, "1,a\n2,b\n")

	cfg := baseConfig(t, nodeFile, dataFile)
	overrideHostsToLocalhost(t, &cfg)

	s := New(cfg)
	summary, err := s.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, summary.TasksCompleted)
	require.Equal(t, 0, summary.TasksUnfinished)
}

func TestKilledChildJournaled(t *testing.T) {
	dir := t.TempDir()
	nodeFile := filepath.Join(dir, "nodes.txt")
	dataFile := filepath.Join(dir, "data.txt")
	writeFile(t, nodeFile, "n1 1\n")
	writeFile(t, dataFile, "1,a\n2,b\n")

	cfg := baseConfig(t, nodeFile, dataFile)
	cfg.ProgramFile = "/bin/false"
	overrideHostsToLocalhost(t, &cfg)

	s := New(cfg)
	summary, err := s.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 0, summary.TasksCompleted)
	require.Equal(t, 2, summary.TasksUnfinished)

	contents, err := os.ReadFile(filepath.Join(cfg.OutDir, "unfinished_tasks.txt"))
	require.NoError(t, err)
	require.True(t, strings.Contains(string(contents), "1,a"))
	require.True(t, strings.Contains(string(contents), "2,b"))
}

func TestDispatchErrorAbandonsWorkerSlotAndJournalsRemaining(t *testing.T) {
	dir := t.TempDir()
	nodeFile := filepath.Join(dir, "nodes.txt")
	dataFile := filepath.Join(dir, "data.txt")
	writeFile(t, nodeFile, "n1 1\n")
	// The empty field between the commas makes task.Split (and so
	// task.BuildArgv) return an error, which worker.Dispatch propagates as
	// a genuine RPC error rather than a protocol.Status.
	writeFile(t, dataFile, "1,a,,b\n2,c\n")

	cfg := baseConfig(t, nodeFile, dataFile)
	overrideHostsToLocalhost(t, &cfg)

	s := New(cfg)
	summary, err := s.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 0, summary.TasksCompleted)
	require.Equal(t, 2, summary.TasksUnfinished)

	contents, err := os.ReadFile(filepath.Join(cfg.OutDir, "unfinished_tasks.txt"))
	require.NoError(t, err)
	require.True(t, strings.Contains(string(contents), "1,a,,b"))
	require.True(t, strings.Contains(string(contents), "2,c"))
}

// overrideHostsToLocalhost rewrites the host of every node-file line to
// "localhost": nodefile.Read parses whatever host string the node file
// contains, and this package's tests always write "n1", so Spawn would try
// ssh. With "localhost" Spawn takes the in-process path instead.
func overrideHostsToLocalhost(t *testing.T, cfg *Config) {
	t.Helper()
	contents, err := os.ReadFile(cfg.NodeFile)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimRight(string(contents), "\n"), "\n")
	for i, line := range lines {
		fields := strings.Fields(line)
		if len(fields) == 2 {
			lines[i] = "localhost " + fields[1]
		}
	}
	require.NoError(t, os.WriteFile(cfg.NodeFile, []byte(strings.Join(lines, "\n")+"\n"), 0644))
}
