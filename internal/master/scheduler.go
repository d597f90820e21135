// Package master implements the scheduler side of the dispatch engine:
// spawn a worker per declared core, saturate the pool with a first batch,
// then run the recv-reply-dispatch loop until the data file is drained and
// every worker has been told to stop. A push model is used (master calls
// Worker.Dispatch directly) rather than workers polling for work, because
// the steady phase always reuses the exact WorkerId that just replied, not
// whichever worker asks next.
package master

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/oscarsaleta/PVMantz/internal/datafile"
	"github.com/oscarsaleta/PVMantz/internal/errcode"
	"github.com/oscarsaleta/PVMantz/internal/journal"
	"github.com/oscarsaleta/PVMantz/internal/nodefile"
	"github.com/oscarsaleta/PVMantz/internal/protocol"
	"github.com/oscarsaleta/PVMantz/internal/report"
	"github.com/oscarsaleta/PVMantz/internal/task"
	"github.com/oscarsaleta/PVMantz/internal/transport"
	"github.com/oscarsaleta/PVMantz/internal/worker"
)

// Config carries everything cmd/pbala's flags resolve to before the run
// starts; it is deliberately flat, mirroring the original's argv shape.
type Config struct {
	TaskType        protocol.TaskType
	ProgramFile     string
	DataFile        string
	NodeFile        string
	OutDir          string
	MaxMemSizeKiB   uint64
	MapleSingleCore bool
	CreateErrFiles  bool
	CreateMemFiles  bool
	CreateSlaveFile bool
	CustomPath      string
	WorkerBinary    string

	// ReportWriter defaults to os.Stdout when nil; tests override it.
	ReportWriter io.Writer
}

// Summary is the end-of-run report handed back to cmd/pbala.
type Summary struct {
	CombinedComputingSeconds float64
	WallSeconds              float64
	TasksCompleted           int
	TasksUnfinished          int
}

// Scheduler owns one run's worker pool, journal and report stream.
type Scheduler struct {
	cfg Config
	rpt *report.Report
}

// New builds a Scheduler from a resolved Config.
func New(cfg Config) *Scheduler {
	w := cfg.ReportWriter
	if w == nil {
		w = os.Stdout
	}
	return &Scheduler{cfg: cfg, rpt: report.New(w, "PBala")}
}

// Run executes the full spawn/prime/steady-drain/close-out algorithm. Steady
// and drain are one loop driven by the count of outstanding Dispatch calls:
// a worker with more work coming is indistinguishable from one about to be
// stopped until dispatchNext actually tries and fails to find a next item.
func (s *Scheduler) Run(ctx context.Context) (Summary, error) {
	start := time.Now()

	nodes, err := nodefile.Read(s.cfg.NodeFile)
	if err != nil {
		return Summary{}, errcode.Wrap(errcode.ENodeOpen, err)
	}

	n, err := datafile.CountLines(s.cfg.DataFile)
	if err != nil {
		return Summary{}, errcode.Wrap(errcode.EDatafileLines, err)
	}

	dr, err := datafile.Open(s.cfg.DataFile)
	if err != nil {
		return Summary{}, errcode.Wrap(errcode.EDatafileLines, err)
	}
	defer dr.Close()

	if s.cfg.MapleSingleCore && s.cfg.TaskType == protocol.Maple {
		if err := task.ForceSingleCoreMaple(s.cfg.ProgramFile); err != nil {
			return Summary{}, errcode.Wrap(errcode.EMaple, err)
		}
		defer task.RestoreSingleCoreMaple(s.cfg.ProgramFile)
	}

	pool, err := s.spawnPhase(ctx, nodes)
	if err != nil {
		return Summary{}, err
	}
	defer pool.CloseAll()

	w := pool.Len()
	b := minInt(n, w)

	var nodeInfo *report.NodeInfo
	if s.cfg.CreateSlaveFile {
		nodeInfo, err = report.NewNodeInfo(filepath.Join(s.cfg.OutDir, "node_info.txt"), nodes)
		if err != nil {
			return Summary{}, errcode.Wrap(errcode.EIO, err)
		}
	}

	jrnl, err := journal.Create(filepath.Join(s.cfg.OutDir, "unfinished_tasks.txt"))
	if err != nil {
		return Summary{}, errcode.Wrap(errcode.EIO, err)
	}

	var combinedComputingTime float64
	var completed, unfinished int

	// pending tracks, per worker, the item its one outstanding Dispatch
	// call was sent for -- pool.Recv's *rpc.Call carries a zero-valued
	// Reply on error, so this is the only way to know which task a
	// failed call belonged to.
	pending := make(map[protocol.WorkerID]protocol.WorkItem, b)

	dispatchNext := func(workerID protocol.WorkerID) (ok bool, err error) {
		item, more, err := dr.Next()
		if err != nil {
			return false, err
		}
		if !more {
			return false, nil
		}
		if err := s.dispatchItem(pool, workerID, item); err != nil {
			return false, err
		}
		pending[workerID] = item
		if nodeInfo != nil {
			if err := nodeInfo.Assign(workerID, item.TaskNumber); err != nil {
				s.rpt.Error("task %d: writing node_info.txt row: %v", item.TaskNumber, err)
			}
		}
		return true, nil
	}

	// Prime phase: saturate the first b workers.
	outstanding := 0
	for id := protocol.WorkerID(0); int(id) < b; id++ {
		ok, err := dispatchNext(id)
		if err != nil {
			return Summary{}, errcode.Wrap(errcode.EIO, err)
		}
		if ok {
			outstanding++
		}
	}

	// Steady/drain: recv(ANY), re-dispatch onto the same worker while it
	// still has work waiting, otherwise that worker is done and gets a
	// synchronous Stop -- never the shared done channel pool.Recv drains,
	// since a Stop ack and a real result are otherwise indistinguishable
	// on that channel. A Dispatch call that comes back with call.Error
	// set (a bad task type, an I/O failure on the worker side, or the
	// worker process dying mid-call) is fatal for that worker's slot: the
	// task is journaled and the slot is abandoned, never retried.
	for outstanding > 0 {
		workerID, call := pool.Recv()
		outstanding--
		item, hadPending := pending[workerID]
		delete(pending, workerID)

		if call.Error != nil {
			s.rpt.Error("worker %d: task %d: %v", workerID, item.TaskNumber, call.Error)
			if hadPending {
				if err := jrnl.Append(item.TaskNumber, item.ArgsCSV); err != nil {
					s.rpt.Error("task %d: journaling unfinished task: %v", item.TaskNumber, err)
				}
				unfinished++
			}
			continue
		}

		result := call.Reply.(*protocol.ResultMessage)
		s.logResult(jrnl, result, &completed, &unfinished)

		dispatched, err := dispatchNext(workerID)
		if err != nil {
			return Summary{}, errcode.Wrap(errcode.EIO, err)
		}
		if dispatched {
			outstanding++
			continue
		}

		// No more work for this worker: this reply is its last, so its
		// TotalSeconds is that worker's final cumulative computing time.
		combinedComputingTime += result.TotalSeconds
		if err := stopWorker(pool, workerID); err != nil {
			return Summary{}, errcode.Wrap(errcode.EIO, err)
		}
	}

	// Anything left unread in the data file belonged to a worker slot
	// abandoned above, or N < W left it past the last item any live
	// worker ever asked for; either way it's unfinished, not dispatched.
	for {
		item, more, err := dr.Next()
		if err != nil {
			return Summary{}, errcode.Wrap(errcode.EIO, err)
		}
		if !more {
			break
		}
		if err := jrnl.Append(item.TaskNumber, item.ArgsCSV); err != nil {
			s.rpt.Error("task %d: journaling unfinished task: %v", item.TaskNumber, err)
		}
		unfinished++
	}

	// When N < W, workers b..w-1 never received any work at all and so
	// never entered the loop above; every spawned worker still gets
	// exactly one Stop.
	for id := protocol.WorkerID(b); int(id) < w; id++ {
		if err := stopWorker(pool, id); err != nil {
			return Summary{}, errcode.Wrap(errcode.EIO, err)
		}
	}

	wall := time.Since(start).Seconds()
	s.rpt.Summary(combinedComputingTime, wall)

	if err := jrnl.RemoveIfEmpty(); err != nil {
		return Summary{}, errcode.Wrap(errcode.EIO, err)
	}
	if err := removeAuxScripts(s.cfg.OutDir); err != nil {
		return Summary{}, errcode.Wrap(errcode.EIO, err)
	}

	return Summary{
		CombinedComputingSeconds: combinedComputingTime,
		WallSeconds:              wall,
		TasksCompleted:           completed,
		TasksUnfinished:          unfinished,
	}, nil
}

func (s *Scheduler) spawnPhase(ctx context.Context, nodes []protocol.NodeSpec) (*transport.Pool, error) {
	pool := transport.NewPool()
	var workerID protocol.WorkerID

	for _, node := range nodes {
		for i := 0; i < node.Cores; i++ {
			var svc interface{}
			if node.Host == "" || node.Host == "localhost" {
				w := worker.New(workerID)
				w.SetContext(ctx)
				svc = w
			}
			h, err := transport.Spawn(ctx, workerID, node, s.cfg.WorkerBinary, svc)
			if err != nil {
				pool.CloseAll()
				return nil, errcode.Wrap(errcode.EPvmSpawn, err)
			}
			pool.Add(h)

			var ack protocol.GreetingAck
			greet := &protocol.GreetingMessage{
				WorkerID:    workerID,
				TaskType:    s.cfg.TaskType,
				MaxTaskSize: s.cfg.MaxMemSizeKiB,
				CreateErr:   s.cfg.CreateErrFiles,
				CreateMem:   s.cfg.CreateMemFiles,
				CustomPath:  s.cfg.CustomPath != "",
				ProgramPath: s.cfg.CustomPath,
			}
			if err := h.Client.Call("Worker.Greet", greet, &ack); err != nil {
				pool.CloseAll()
				return nil, errcode.Wrap(errcode.EPvmSpawn, err)
			}
			s.rpt.CreatedSlave(workerID)
			workerID++
		}
	}
	return pool, nil
}

func (s *Scheduler) dispatchItem(pool *transport.Pool, workerID protocol.WorkerID, item protocol.WorkItem) error {
	outDir := s.cfg.OutDir
	programFile := s.cfg.ProgramFile

	if s.cfg.TaskType.RequiresAuxScript() {
		// The library path binds into the generated script, not into argv,
		// so it must be resolved here exactly the way the worker resolves
		// customPath for every other task type.
		libraryPath := task.ResolveProgramPath(s.cfg.ProgramFile, s.cfg.CustomPath != "", s.cfg.CustomPath)
		auxPath, err := task.WriteAuxScript(s.cfg.TaskType, item.TaskNumber, item.ArgsCSV, libraryPath, outDir)
		if err != nil {
			return err
		}
		s.rpt.CreatedScript(s.cfg.TaskType, item.TaskNumber)
		// The worker execs this script directly -- it is where taskId and
		// taskArgs are actually bound for Pari/Sage/Octave, since neither
		// appears in those types' argv.
		programFile = auxPath
	}

	result := &protocol.ResultMessage{}
	err := pool.Dispatch(workerID, &protocol.WorkMessage{
		WorkCode:    protocol.Work,
		TaskNumber:  item.TaskNumber,
		ProgramFile: programFile,
		OutDir:      outDir,
		ArgsCSV:     item.ArgsCSV,
	}, result)
	if err != nil {
		return err
	}
	s.rpt.TaskSent(item.TaskNumber)
	return nil
}

func (s *Scheduler) logResult(jrnl *journal.Journal, result *protocol.ResultMessage, completed, unfinished *int) {
	switch result.Status {
	case protocol.OK:
		s.rpt.TaskCompleted(result.TaskNumber, result.ExecSeconds)
		*completed++
	default:
		s.rpt.Error("task %d was stopped or killed", result.TaskNumber)
		if err := jrnl.Append(result.TaskNumber, result.ArgsCSV); err != nil {
			s.rpt.Error("task %d: journaling unfinished task: %v", result.TaskNumber, err)
		}
		*unfinished++
	}
}

// stopWorker sends a Stop synchronously, bypassing the pool's shared done
// channel entirely -- an async Dispatch here would land its ack on
// pool.Recv's channel indistinguishably from a real task result.
func stopWorker(pool *transport.Pool, workerID protocol.WorkerID) error {
	h := pool.Handle(workerID)
	if h == nil {
		return nil
	}
	return h.Client.Call("Worker.Dispatch", &protocol.WorkMessage{WorkCode: protocol.Stop}, &protocol.ResultMessage{})
}

func removeAuxScripts(outDir string) error {
	entries, err := os.ReadDir(outDir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if strings.Contains(e.Name(), "auxprog") {
			if err := os.Remove(filepath.Join(outDir, e.Name())); err != nil {
				return err
			}
		}
	}
	return nil
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
