// Package journal implements the append-only unfinished-tasks record:
// every task that did not finish OK gets one line here, durable through
// close, so a later run can retry it.
package journal

import (
	"fmt"
	"os"
)

// Journal wraps the unfinished_tasks.txt path.
type Journal struct {
	path string
}

// Create truncates (or creates) the journal file empty, as the scheduler
// does at the start of the steady phase.
func Create(path string) (*Journal, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	if err := f.Close(); err != nil {
		return nil, err
	}
	return &Journal{path: path}, nil
}

// Append opens for append, writes one record, and closes -- durability
// through close.
func (j *Journal) Append(taskNumber int, argsCSV string) error {
	f, err := os.OpenFile(j.path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = fmt.Fprintf(f, "%d,%s\n", taskNumber, argsCSV)
	return err
}

// RemoveIfEmpty deletes the journal file iff it is zero-length, the
// close-out cleanup the scheduler performs at the end of a run.
func (j *Journal) RemoveIfEmpty() error {
	info, err := os.Stat(j.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if info.Size() > 0 {
		return nil
	}
	return os.Remove(j.path)
}

// Path returns the journal's file path, e.g. for use as a --retry-unfinished data file.
func (j *Journal) Path() string { return j.path }
