// Package worker implements the worker-side state machine: greet once,
// then repeatedly gate -> execute -> report until told to stop. A *Worker
// is registered as a net/rpc service; the master calls its methods
// directly (a push model) rather than the worker polling, because the
// scheduler always reuses a specific freed WorkerId rather than handing
// work to whichever worker asks next.
package worker

import (
	"context"
	"fmt"
	"sync"

	"time"

	"github.com/oscarsaleta/PVMantz/internal/admission"
	"github.com/oscarsaleta/PVMantz/internal/executor"
	"github.com/oscarsaleta/PVMantz/internal/protocol"
	"github.com/oscarsaleta/PVMantz/internal/task"
)

// Worker holds the one piece of state that persists across tasks on a
// worker: the monotonic totalSeconds accumulator. Nothing else is shared
// across tasks, and nothing at all is shared across workers.
type Worker struct {
	mu sync.Mutex

	id           protocol.WorkerID
	taskType     protocol.TaskType
	createErr    bool
	createMem    bool
	customPath   bool
	programPath  string
	gate         *admission.Gate
	totalSeconds float64
	backoff      time.Duration

	// Stopped is closed once a Stop dispatch has been handled, letting
	// the hosting process (cmd/pbala-worker) exit cleanly.
	Stopped chan struct{}

	greeted bool
	ctx     context.Context
}

// New builds a Worker with the generic admission gate as a default; Greet
// replaces it with whatever mode/size the master's greeting specifies.
func New(id protocol.WorkerID) *Worker {
	return &Worker{
		id:      id,
		gate:    admission.NewGate(0, admission.DefaultFloorKiB, admission.MeminfoProber{}),
		Stopped: make(chan struct{}),
		backoff: admission.BackoffInterval,
		ctx:     context.Background(),
	}
}

// SetBackoff overrides the re-gate backoff interval; tests use this to
// avoid sleeping a full 60s on a simulated refusal.
func (w *Worker) SetBackoff(d time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.backoff = d
}

// SetContext installs the context used to bound admission-gate backoff and
// task execution; cmd/pbala-worker wires this to its process-lifetime
// context so a --kill or signal can unblock a backing-off worker.
func (w *Worker) SetContext(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.ctx = ctx
}

// Greet is the worker-side handler for the once-per-run GreetingMessage.
// It unpacks every field the master sends -- createErr, createMem,
// customPath and programPath included -- closing the
// "worker never unpacks the rest" open question by construction: master
// and worker share the GreetingMessage struct, so there is nothing left
// for the worker to silently ignore.
func (w *Worker) Greet(msg *protocol.GreetingMessage, ack *protocol.GreetingAck) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.id = msg.WorkerID
	w.taskType = msg.TaskType
	w.createErr = msg.CreateErr
	w.createMem = msg.CreateMem
	w.customPath = msg.CustomPath
	w.programPath = msg.ProgramPath
	w.gate = admission.NewGate(msg.MaxTaskSize, admission.DefaultFloorKiB, admission.MeminfoProber{})
	w.greeted = true

	ack.WorkerID = w.id
	return nil
}

// Dispatch is the worker-side handler for a WorkMessage: gate, execute,
// report, or quiesce on Stop. Its signature is constrained by net/rpc --
// exactly one arg, one reply, one error return, no context.Context
// parameter -- so cancellation flows in through w.ctx instead.
func (w *Worker) Dispatch(msg *protocol.WorkMessage, result *protocol.ResultMessage) error {
	if msg.WorkCode == protocol.Stop {
		w.closeStopped()
		return nil
	}

	w.mu.Lock()
	taskType := w.taskType
	createErr := w.createErr
	createMem := w.createMem
	gate := w.gate
	backoff := w.backoff
	ctx := w.ctx
	w.mu.Unlock()

	if !w.admitWithBackoff(ctx, gate, backoff) {
		// Context was cancelled while backing off; report MEM_ERR so
		// the master journals the item rather than hanging forever.
		result.WorkerID = w.id
		result.TaskNumber = msg.TaskNumber
		result.Status = protocol.MemErr
		result.ArgsCSV = msg.ArgsCSV
		return nil
	}

	// For Pari/Sage/Octave, msg.ProgramFile is already the generated aux
	// script path -- the master resolved customPath into it when writing
	// the script, since that is where taskId/taskArgs bind for those
	// types. Every other type still resolves customPath here.
	prog := msg.ProgramFile
	if !taskType.RequiresAuxScript() {
		prog = task.ResolveProgramPath(msg.ProgramFile, w.customPath, w.programPath)
	}
	res, err := executor.Run(ctx, taskType, prog, msg.TaskNumber, msg.ArgsCSV, msg.OutDir, createErr)
	if err != nil {
		return fmt.Errorf("worker %d: task %d: %w", w.id, msg.TaskNumber, err)
	}

	if createMem {
		if err := executor.WriteUsageFile(msg.OutDir, usageRecord(msg.TaskNumber, res)); err != nil {
			return fmt.Errorf("worker %d: task %d: writing usage file: %w", w.id, msg.TaskNumber, err)
		}
	}

	w.mu.Lock()
	w.totalSeconds += res.ExecSeconds
	total := w.totalSeconds
	w.mu.Unlock()

	result.WorkerID = w.id
	result.TaskNumber = msg.TaskNumber
	result.Status = res.Status
	result.ArgsCSV = msg.ArgsCSV
	result.ExecSeconds = res.ExecSeconds
	result.TotalSeconds = total
	return nil
}

// admitWithBackoff re-gates until admitted or ctx is done. This is the one
// place a worker blocks for a long time; the master's recv(ANY) is
// unaffected because it is waiting on a shared channel fed by every
// worker's in-flight call, not this one specifically.
func (w *Worker) admitWithBackoff(ctx context.Context, gate *admission.Gate, backoff time.Duration) bool {
	for {
		ok, err := gate.Admit()
		if err == nil && ok {
			return true
		}
		select {
		case <-ctx.Done():
			return false
		case <-time.After(backoff):
			continue
		}
	}
}

func (w *Worker) closeStopped() {
	w.mu.Lock()
	defer w.mu.Unlock()
	select {
	case <-w.Stopped:
		// already stopped
	default:
		close(w.Stopped)
	}
}

func usageRecord(taskNumber int, res executor.Result) protocol.UsageRecord {
	return protocol.UsageRecord{
		TaskNumber:  taskNumber,
		UserSeconds: res.UserSeconds,
		SysSeconds:  res.SysSeconds,
		MaxRSSKiB:   res.MaxRSSKiB,
		Timestamp:   time.Now(),
	}
}

// ID reports the worker's assigned id.
func (w *Worker) ID() protocol.WorkerID {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.id
}
