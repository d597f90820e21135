// Package executor runs one target-program invocation on behalf of a
// worker: build argv, redirect stdio, start the child, wait for it, and
// turn its exit status and resource usage into a protocol.Status plus
// timings. Go has no fork(); exec.Cmd is the idiomatic substitute.
package executor

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"

	"github.com/oscarsaleta/PVMantz/internal/protocol"
	"github.com/oscarsaleta/PVMantz/internal/task"
)

// Result is the outcome of one Run.
type Result struct {
	Status      protocol.Status
	ExecSeconds float64
	UserSeconds float64
	SysSeconds  float64
	MaxRSSKiB   int64
}

// Run execs the target program for one task and waits for it to finish.
// It never returns an error for a failed/killed child -- that outcome is
// encoded in Result.Status. Run only returns an error for problems on this
// side: a bad task type, an argument string with an empty field, or a
// failure to open the redirected output files.
func Run(ctx context.Context, t protocol.TaskType, prog string, taskNumber int, argsCSV, outDir string, createErr bool) (Result, error) {
	argv, err := task.BuildArgv(t, prog, taskNumber, argsCSV)
	if err != nil {
		return Result{}, err
	}

	outPath := filepath.Join(outDir, fmt.Sprintf("%d_out.txt", taskNumber))
	outFile, err := os.OpenFile(outPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0666)
	if err != nil {
		return Result{}, fmt.Errorf("executor: opening %s: %w", outPath, err)
	}
	defer outFile.Close()

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Stdout = outFile

	if createErr {
		errPath := filepath.Join(outDir, fmt.Sprintf("%d_err.txt", taskNumber))
		errFile, err := os.OpenFile(errPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0666)
		if err != nil {
			return Result{}, fmt.Errorf("executor: opening %s: %w", errPath, err)
		}
		defer errFile.Close()
		cmd.Stderr = errFile
	}

	if err := cmd.Start(); err != nil {
		// The Go analogue of fork() failing: no process was created.
		return Result{Status: protocol.ForkErr}, nil
	}

	waitErr := cmd.Wait()
	state := cmd.ProcessState

	status := protocol.OK
	if waitErr != nil || state.ExitCode() != 0 {
		status = protocol.TaskKilled
	}

	userSeconds := state.UserTime().Seconds()
	sysSeconds := state.SystemTime().Seconds()
	maxRSS := int64(0)
	if rusage, ok := state.SysUsage().(*syscall.Rusage); ok {
		maxRSS = rusage.Maxrss
	}

	return Result{
		Status:      status,
		ExecSeconds: userSeconds + sysSeconds,
		UserSeconds: userSeconds,
		SysSeconds:  sysSeconds,
		MaxRSSKiB:   maxRSS,
	}, nil
}
