package task

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oscarsaleta/PVMantz/internal/protocol"
)

func TestBuildArgvMaple(t *testing.T) {
	argv, err := BuildArgv(protocol.Maple, "lib.mpl", 7, "1,2,3")
	require.NoError(t, err)
	require.Equal(t, []string{
		"maple",
		"-tc \"taskId:=7\"",
		"-c \"taskArgs:=[1,2,3]\"",
		"lib.mpl",
	}, argv)
}

func TestBuildArgvC(t *testing.T) {
	argv, err := BuildArgv(protocol.C, "/bin/prog", 3, "a,b,c")
	require.NoError(t, err)
	require.Equal(t, []string{"/bin/prog", "3", "a", "b", "c"}, argv)
}

func TestBuildArgvPython(t *testing.T) {
	argv, err := BuildArgv(protocol.Python, "prog.py", 3, "a,b")
	require.NoError(t, err)
	require.Equal(t, []string{"python", "prog.py", "3", "a", "b"}, argv)
}

func TestBuildArgvEmptyArgs(t *testing.T) {
	argv, err := BuildArgv(protocol.C, "/bin/prog", 1, "")
	require.NoError(t, err)
	require.Equal(t, []string{"/bin/prog", "1"}, argv)
}

func TestBuildArgvRejectsEmptyField(t *testing.T) {
	_, err := BuildArgv(protocol.C, "/bin/prog", 1, "a,,c")
	require.ErrorIs(t, err, ErrEmptyField)
}

func TestBuildArgvAuxTypes(t *testing.T) {
	argv, err := BuildArgv(protocol.Pari, "lib.gp", 1, "1,2")
	require.NoError(t, err)
	require.Equal(t, []string{"gp", "-q", "lib.gp"}, argv)

	argv, err = BuildArgv(protocol.Sage, "lib.sage", 1, "1,2")
	require.NoError(t, err)
	require.Equal(t, []string{"sage", "lib.sage"}, argv)

	argv, err = BuildArgv(protocol.Octave, "lib.m", 1, "1,2")
	require.NoError(t, err)
	require.Equal(t, []string{"octave", "--no-gui", "lib.m"}, argv)
}

func TestResolveProgramPath(t *testing.T) {
	require.Equal(t, "file.mpl", ResolveProgramPath("file.mpl", false, "custom.mpl"))
	require.Equal(t, "custom.mpl", ResolveProgramPath("file.mpl", true, "custom.mpl"))
}
