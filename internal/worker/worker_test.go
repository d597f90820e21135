package worker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oscarsaleta/PVMantz/internal/admission"
	"github.com/oscarsaleta/PVMantz/internal/protocol"
)

type fixedProber struct{ freeKiB uint64 }

func (p fixedProber) FreeKiB() (uint64, error) { return p.freeKiB, nil }

func TestGreetUnpacksEveryField(t *testing.T) {
	w := New(0)
	var ack protocol.GreetingAck

	err := w.Greet(&protocol.GreetingMessage{
		WorkerID:    5,
		TaskType:    protocol.Pari,
		MaxTaskSize: 1024,
		CreateErr:   true,
		CreateMem:   true,
		CustomPath:  true,
		ProgramPath: "/opt/gp",
	}, &ack)

	require.NoError(t, err)
	require.Equal(t, protocol.WorkerID(5), ack.WorkerID)
	require.Equal(t, protocol.WorkerID(5), w.ID())
	require.True(t, w.createErr)
	require.True(t, w.createMem)
	require.True(t, w.customPath)
	require.Equal(t, "/opt/gp", w.programPath)
}

func TestDispatchStopClosesStopped(t *testing.T) {
	w := New(1)
	var result protocol.ResultMessage

	err := w.Dispatch(&protocol.WorkMessage{WorkCode: protocol.Stop}, &result)
	require.NoError(t, err)

	select {
	case <-w.Stopped:
	default:
		t.Fatal("expected Stopped to be closed")
	}

	// idempotent: a second Stop must not panic on a double close.
	require.NoError(t, w.Dispatch(&protocol.WorkMessage{WorkCode: protocol.Stop}, &result))
}

func TestDispatchRunsTaskAndAccumulatesTotalSeconds(t *testing.T) {
	w := New(2)
	w.taskType = protocol.C
	w.gate = admission.NewGate(0, 0, fixedProber{freeKiB: 1 << 20})

	outDir := t.TempDir()
	var result protocol.ResultMessage

	err := w.Dispatch(&protocol.WorkMessage{
		WorkCode:    protocol.Work,
		TaskNumber:  4,
		ProgramFile: "/bin/echo",
		OutDir:      outDir,
		ArgsCSV:     "hello",
	}, &result)

	require.NoError(t, err)
	require.Equal(t, protocol.WorkerID(2), result.WorkerID)
	require.Equal(t, 4, result.TaskNumber)
	require.Equal(t, protocol.OK, result.Status)
	// First task on this worker: the running total is exactly its own time.
	require.Equal(t, result.ExecSeconds, result.TotalSeconds)
}

func TestDispatchReportsMemErrWhenGateNeverAdmits(t *testing.T) {
	w := New(3)
	w.taskType = protocol.C
	w.gate = admission.NewGate(1<<30, 0, fixedProber{freeKiB: 1})
	w.SetBackoff(5 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	w.SetContext(ctx)

	var result protocol.ResultMessage
	err := w.Dispatch(&protocol.WorkMessage{
		WorkCode:   protocol.Work,
		TaskNumber: 9,
		OutDir:     t.TempDir(),
	}, &result)

	require.NoError(t, err)
	require.Equal(t, protocol.MemErr, result.Status)
}
