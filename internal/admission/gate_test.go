package admission

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

var errProbeFailed = errors.New("probe failed")

type fakeProber struct {
	freeKiB uint64
	err     error
}

func (f fakeProber) FreeKiB() (uint64, error) { return f.freeKiB, f.err }

func TestGateGenericAdmits(t *testing.T) {
	g := NewGate(0, 1000, fakeProber{freeKiB: 2000})
	require.Equal(t, Generic, g.Mode)
	ok, err := g.Admit()
	require.NoError(t, err)
	require.True(t, ok)
}

func TestGateGenericRefuses(t *testing.T) {
	g := NewGate(0, 1000, fakeProber{freeKiB: 500})
	ok, err := g.Admit()
	require.NoError(t, err)
	require.False(t, ok)
}

func TestGateSpecificAdmits(t *testing.T) {
	g := NewGate(500, 1000, fakeProber{freeKiB: 2000})
	require.Equal(t, Specific, g.Mode)
	ok, err := g.Admit()
	require.NoError(t, err)
	require.True(t, ok)
}

func TestGateSpecificRefusesNearFloor(t *testing.T) {
	g := NewGate(500, 1000, fakeProber{freeKiB: 1400})
	ok, err := g.Admit()
	require.NoError(t, err)
	require.False(t, ok)
}

func TestGateSpecificRefusesWhenMaxExceedsFree(t *testing.T) {
	g := NewGate(5000, 1000, fakeProber{freeKiB: 2000})
	ok, err := g.Admit()
	require.NoError(t, err)
	require.False(t, ok)
}

func TestGatePropagatesProbeError(t *testing.T) {
	wantErr := require.Error
	g := NewGate(0, 1000, fakeProber{err: errProbeFailed})
	_, err := g.Admit()
	wantErr(t, err)
}
