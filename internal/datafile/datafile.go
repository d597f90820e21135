// Package datafile parses the work-item data file: one "taskNumber,args"
// line per task. Like nodefile, this is deliberately shallow -- a thin,
// line-oriented reader, not a core component.
package datafile

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/oscarsaleta/PVMantz/internal/protocol"
)

// Reader streams WorkItems off a data file one line at a time, the way
// the master needs to: it primes a batch up front and then pulls one more
// line per completed result, never loading the whole file into memory.
type Reader struct {
	file    *os.File
	scanner *bufio.Scanner
	lineNo  int
}

// Open opens path for line-by-line reading.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	return &Reader{file: f, scanner: bufio.NewScanner(f)}, nil
}

// Next returns the next WorkItem, or (WorkItem{}, false, nil) at EOF.
// Blank lines are skipped, matching CountLines so N and the actual number
// of items Next yields never disagree.
func (r *Reader) Next() (protocol.WorkItem, bool, error) {
	for {
		if !r.scanner.Scan() {
			if err := r.scanner.Err(); err != nil {
				return protocol.WorkItem{}, false, err
			}
			return protocol.WorkItem{}, false, nil
		}
		r.lineNo++
		line := r.scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		return ParseLine(line, r.lineNo)
	}
}

// Close releases the underlying file.
func (r *Reader) Close() error { return r.file.Close() }

// ParseLine parses one data-file line: the first comma-separated field is
// an integer task number, everything after the first comma is the
// argument string passed verbatim to the target program.
func ParseLine(line string, lineNo int) (protocol.WorkItem, bool, error) {
	comma := strings.IndexByte(line, ',')
	var numPart, rest string
	if comma < 0 {
		numPart, rest = line, ""
	} else {
		numPart, rest = line[:comma], line[comma+1:]
	}
	n, err := strconv.Atoi(strings.TrimSpace(numPart))
	if err != nil {
		return protocol.WorkItem{}, false, fmt.Errorf("datafile: line %d: first column must be a task number: %w", lineNo, err)
	}
	return protocol.WorkItem{TaskNumber: n, ArgsCSV: rest}, true, nil
}

// CountLines counts non-empty lines in path, used to compute N up front.
func CountLines(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	n := 0
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if strings.TrimSpace(scanner.Text()) == "" {
			continue
		}
		n++
	}
	return n, scanner.Err()
}
