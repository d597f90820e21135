package task

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/oscarsaleta/PVMantz/internal/protocol"
)

// auxScriptPath builds a transient script path inside outDir. The
// "auxprog" substring is the sentinel the master's close-out phase greps
// for when deleting transient scripts; the trailing UUID keeps
// concurrently-running tasks on the same outDir from colliding.
func auxScriptPath(outDir string, taskNumber int, ext string) string {
	name := fmt.Sprintf("%d_auxprog_%s.%s", taskNumber, uuid.New().String(), ext)
	return filepath.Join(outDir, name)
}

// WritePariScript emits a minimal GP script binding the task id and
// argument list before reading the target library, and returns its path.
// Body generation for the target library itself is out of scope: this is
// a pure file emitter, not a Pari interpreter.
func WritePariScript(taskNumber int, argsCSV, programFile, outDir string) (string, error) {
	path := auxScriptPath(outDir, taskNumber, "gp")
	body := fmt.Sprintf("taskId = %d;\ntaskArgs = [%s];\nread(\"%s\");\n", taskNumber, argsCSV, programFile)
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		return "", err
	}
	return path, nil
}

// WriteSageScript emits a minimal Sage script binding the task id and
// argument list before loading the target library.
func WriteSageScript(taskNumber int, argsCSV, programFile, outDir string) (string, error) {
	path := auxScriptPath(outDir, taskNumber, "sage")
	body := fmt.Sprintf("taskId = %d\ntaskArgs = [%s]\nload(\"%s\")\n", taskNumber, argsCSV, programFile)
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		return "", err
	}
	return path, nil
}

// WriteOctaveScript emits a minimal Octave script binding the task id and
// argument list before running the target library.
func WriteOctaveScript(taskNumber int, argsCSV, programFile, outDir string) (string, error) {
	path := auxScriptPath(outDir, taskNumber, "m")
	body := fmt.Sprintf("taskId = %d;\ntaskArgs = [%s];\nrun(\"%s\");\n", taskNumber, argsCSV, programFile)
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		return "", err
	}
	return path, nil
}

// WriteAuxScript dispatches to the right emitter for t, or returns ("",
// nil) for task types that don't need one.
func WriteAuxScript(t protocol.TaskType, taskNumber int, argsCSV, programFile, outDir string) (string, error) {
	switch t {
	case protocol.Pari:
		return WritePariScript(taskNumber, argsCSV, programFile, outDir)
	case protocol.Sage:
		return WriteSageScript(taskNumber, argsCSV, programFile, outDir)
	case protocol.Octave:
		return WriteOctaveScript(taskNumber, argsCSV, programFile, outDir)
	default:
		return "", nil
	}
}
