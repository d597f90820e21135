// Command pbala is the master: parse flags, build a master.Config, run the
// spawn/prime/steady/drain/close-out scheduler, and map its outcome to one
// of the fixed exit codes in internal/errcode.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/oscarsaleta/PVMantz/internal/errcode"
	"github.com/oscarsaleta/PVMantz/internal/master"
	"github.com/oscarsaleta/PVMantz/internal/protocol"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("pbala", flag.ContinueOnError)
	var (
		taskType        = fs.Int("task-type", -1, "task type: 0=maple 1=c 2=python 3=pari 4=sage 5=octave")
		program         = fs.String("program", "", "path to the target program")
		data            = fs.String("data", "", "path to the data file")
		nodes           = fs.String("nodes", "", "path to the node file")
		out             = fs.String("out", "", "output directory")
		maxMemSize      = fs.Uint64("max-mem-size", 0, "estimated KiB for the Specific admission gate; 0 selects Generic")
		mapleSingleCore = fs.Bool("maple-single-core", false, "patch the Maple program to force numcpus=1")
		createErrFiles  = fs.Bool("create-errfiles", false, "capture per-task stderr to <task>_err.txt")
		createMemFiles  = fs.Bool("create-memfiles", false, "write a per-task resource-usage record")
		createSlaveFile = fs.Bool("create-slavefile", false, "write node_info.txt with worker/task assignments")
		customProcess   = fs.String("custom-process", "", "override the program path sent to workers")
		kill            = fs.Bool("kill", false, "send SIGTERM to the master recorded in this outDir's .pbala.pids and exit")
		retryUnfinished = fs.String("retry-unfinished", "", "re-run the master using this unfinished_tasks.txt as the data file")
		workerBinary    = fs.String("worker-binary", "pbala-worker", "path to the pbala-worker binary, for remote node spawns")
	)
	if err := fs.Parse(args); err != nil {
		return int(errcode.EArgs)
	}

	if *kill {
		if err := killRun(*out); err != nil {
			log.Printf("pbala: kill: %v", err)
			return int(errcode.EArgs)
		}
		return int(errcode.OK)
	}

	dataFile := *data
	if *retryUnfinished != "" {
		dataFile = *retryUnfinished
	}

	cfg, code := buildConfig(*taskType, *program, dataFile, *nodes, *out, *maxMemSize,
		*mapleSingleCore, *createErrFiles, *createMemFiles, *createSlaveFile, *customProcess, *workerBinary)
	if code != errcode.OK {
		return int(code)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Printf("pbala: received %v, cancelling run", sig)
		cancel()
	}()

	pidFile := filepath.Join(cfg.OutDir, ".pbala.pids")
	if err := recordPID(pidFile); err != nil {
		log.Printf("pbala: warning: could not record pid file: %v", err)
	}
	defer os.Remove(pidFile)

	s := master.New(cfg)
	summary, err := s.Run(ctx)
	if err != nil {
		log.Printf("pbala: %v", err)
		return exitCodeFor(err)
	}

	log.Printf("pbala: completed %d task(s), %d unfinished, wall=%.3fs combined=%.3fs",
		summary.TasksCompleted, summary.TasksUnfinished, summary.WallSeconds, summary.CombinedComputingSeconds)
	return int(errcode.OK)
}

func buildConfig(taskType int, program, data, nodes, out string, maxMemSize uint64,
	mapleSingleCore, createErrFiles, createMemFiles, createSlaveFile bool,
	customProcess, workerBinary string) (master.Config, errcode.Code) {

	if taskType < int(protocol.Maple) || taskType > int(protocol.Octave) {
		log.Printf("pbala: -task-type must be in [0,5], got %d", taskType)
		return master.Config{}, errcode.EWrongTask
	}
	if program == "" || data == "" || nodes == "" || out == "" {
		log.Printf("pbala: -program, -data, -nodes and -out are all required")
		return master.Config{}, errcode.EArgs
	}
	if _, err := os.Stat(nodes); err != nil {
		return master.Config{}, errcode.ENodeOpen
	}
	if _, err := os.Stat(data); err != nil {
		return master.Config{}, errcode.EDatafileLines
	}
	if err := os.MkdirAll(out, 0755); err != nil {
		return master.Config{}, errcode.EOutdir
	}

	return master.Config{
		TaskType:        protocol.TaskType(taskType),
		ProgramFile:     program,
		DataFile:        data,
		NodeFile:        nodes,
		OutDir:          out,
		MaxMemSizeKiB:   maxMemSize,
		MapleSingleCore: mapleSingleCore,
		CreateErrFiles:  createErrFiles,
		CreateMemFiles:  createMemFiles,
		CreateSlaveFile: createSlaveFile,
		CustomPath:      customProcess,
		WorkerBinary:    workerBinary,
	}, errcode.OK
}

func exitCodeFor(err error) int {
	var ce *errcode.Error
	if errors.As(err, &ce) {
		return int(ce.Code)
	}
	return int(errcode.EIO)
}

func recordPID(path string) error {
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())+"\n"), 0644)
}

// killRun reads outDir/.pbala.pids and SIGTERMs the recorded master
// process -- the Go-native replacement for the original's killPBala /
// pvm_halt cluster teardown. The master's own shutdown path tears down its
// spawned pbala-worker children in turn when it observes the cancellation.
func killRun(outDir string) error {
	if outDir == "" {
		return fmt.Errorf("-out is required with -kill")
	}
	pidFile := filepath.Join(outDir, ".pbala.pids")
	contents, err := os.ReadFile(pidFile)
	if err != nil {
		return fmt.Errorf("reading %s: %w", pidFile, err)
	}
	pid, err := strconv.Atoi(trimNewline(string(contents)))
	if err != nil {
		return fmt.Errorf("parsing pid in %s: %w", pidFile, err)
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return err
	}
	if err := proc.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("signalling pid %d: %w", pid, err)
	}
	// Give the cancelled run a moment to unwind its own worker teardown
	// before this command returns.
	time.Sleep(200 * time.Millisecond)
	return nil
}

func trimNewline(s string) string {
	for len(s) > 0 && (s[len(s)-1] == '\n' || s[len(s)-1] == '\r') {
		s = s[:len(s)-1]
	}
	return s
}
