// Package protocol defines the messages exchanged between master and
// worker. Every field the master packs is unpacked by the worker and vice
// versa -- master and worker share these struct definitions directly, so
// the greeting/work/result field lists can never drift out of sync the way
// they did in the original C implementation.
package protocol

import "time"

// TaskType mirrors the task-type flag accepted on the command line.
type TaskType int

const (
	Maple TaskType = iota
	C
	Python
	Pari
	Sage
	Octave
)

func (t TaskType) String() string {
	switch t {
	case Maple:
		return "maple"
	case C:
		return "c"
	case Python:
		return "python"
	case Pari:
		return "pari"
	case Sage:
		return "sage"
	case Octave:
		return "octave"
	default:
		return "unknown"
	}
}

// RequiresAuxScript reports whether this task type needs a pre-generated
// auxiliary script (parifile/sagefile/octavefile) before dispatch.
func (t TaskType) RequiresAuxScript() bool {
	return t == Pari || t == Sage || t == Octave
}

// WorkCode distinguishes a dispatch carrying work from one that tells a
// worker to quiesce.
type WorkCode int

const (
	Work WorkCode = iota
	Stop
)

// Status is the terminal outcome of one task execution attempt.
type Status int

const (
	OK Status = iota
	ForkErr
	MemErr
	TaskKilled
)

func (s Status) String() string {
	switch s {
	case OK:
		return "OK"
	case ForkErr:
		return "FORK_ERR"
	case MemErr:
		return "MEM_ERR"
	case TaskKilled:
		return "TASK_KILLED"
	default:
		return "UNKNOWN"
	}
}

// NodeSpec is one line of the node file: a hostname and its CPU count.
type NodeSpec struct {
	Host  string
	Cores int
}

// WorkerID is a dense integer in [0, W).
type WorkerID int

// WorkItem is one parsed line of the data file.
type WorkItem struct {
	TaskNumber int
	ArgsCSV    string
}

// GreetingMessage is sent once, master to worker, right after spawn.
type GreetingMessage struct {
	WorkerID    WorkerID
	TaskType    TaskType
	MaxTaskSize uint64 // KiB; 0 means "no estimate, use the generic gate"
	CreateErr   bool
	CreateMem   bool
	CustomPath  bool
	ProgramPath string // only meaningful if CustomPath
}

// GreetingAck is the worker's reply to a GreetingMessage.
type GreetingAck struct {
	WorkerID WorkerID
}

// WorkMessage is sent master to worker for each task, or as a Stop signal.
type WorkMessage struct {
	WorkCode    WorkCode
	TaskNumber  int
	ProgramFile string
	OutDir      string
	ArgsCSV     string
}

// ResultMessage is sent worker to master after a WorkMessage with
// WorkCode == Work has been handled. Stop dispatches get an empty reply.
type ResultMessage struct {
	WorkerID    WorkerID
	TaskNumber  int
	Status      Status
	ArgsCSV     string  // echoed verbatim, for journaling without re-reading the data file
	ExecSeconds float64 // only meaningful when Status indicates the task ran
	TotalSeconds float64
}

// UnfinishedRecord is one line persisted to unfinished_tasks.txt.
type UnfinishedRecord struct {
	TaskNumber int
	ArgsCSV    string
}

// UsageRecord is the per-task resource-usage record written to
// <task>_mem.txt when --create-memfiles is set.
type UsageRecord struct {
	TaskNumber  int
	UserSeconds float64
	SysSeconds  float64
	MaxRSSKiB   int64
	Timestamp   time.Time
}
