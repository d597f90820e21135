// Package report is the human-readable progress stream: one labeled line
// per event, plus a parallel node-assignment file. It wraps log.Logger
// rather than a structured logging library, matching plain log.Printf-style
// output.
package report

import (
	"fmt"
	"io"
	"log"

	"github.com/oscarsaleta/PVMantz/internal/protocol"
)

// Report is a line-buffered labeled event stream.
type Report struct {
	logger *log.Logger
	prog   string
}

// New builds a Report writing to w, prefixing every line with prog (the
// program name), matching the original's "%s:: LABEL - message" shape.
func New(w io.Writer, prog string) *Report {
	return &Report{logger: log.New(w, "", log.LstdFlags), prog: prog}
}

func (r *Report) emit(label, format string, args ...interface{}) {
	r.logger.Printf("%s:: %s - %s", r.prog, label, fmt.Sprintf(format, args...))
}

func (r *Report) Info(format string, args ...interface{})  { r.emit("INFO", format, args...) }
func (r *Report) Error(format string, args ...interface{}) { r.emit("ERROR", format, args...) }

func (r *Report) CreatedSlave(id protocol.WorkerID) {
	r.emit("CREATED_SLAVE", "created slave %d", id)
}

func (r *Report) CreatedScript(taskType protocol.TaskType, taskNumber int) {
	r.emit("CREATED_SCRIPT", "creating auxiliary %s script for task %d", taskType, taskNumber)
}

func (r *Report) TaskSent(taskNumber int) {
	r.emit("TASK_SENT", "sent task %d for execution", taskNumber)
}

func (r *Report) TaskCompleted(taskNumber int, execSeconds float64) {
	r.emit("TASK_COMPLETED", "task %d completed in %.9g seconds", taskNumber, execSeconds)
}

func (r *Report) Summary(combinedComputingTime, wallTime float64) {
	r.emit("INFO", "END OF EXECUTION. Combined computing time: %.5g seconds. Total execution time: %.5g seconds.", combinedComputingTime, wallTime)
}
