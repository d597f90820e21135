// Package task builds the per-task-type argv a worker execs, and emits the
// small auxiliary scripts that Pari/Sage/Octave tasks need. The scripts
// themselves are pure file emitters -- the interesting logic is entirely
// in which fields go where, not in what the target programs do with them.
package task

import (
	"fmt"
	"strings"

	"github.com/oscarsaleta/PVMantz/internal/protocol"
)

// ErrEmptyField is returned by Split when argsCSV contains an empty field,
// e.g. "1,,3". The original C implementation silently tokenized through
// this with strtok; we reject it instead of misparsing it.
var ErrEmptyField = fmt.Errorf("argsCSV contains an empty field")

// Split breaks a comma-separated argument string into its fields. Commas
// are the argv separator for task types C and Python: a field must never
// contain one.
func Split(argsCSV string) ([]string, error) {
	if argsCSV == "" {
		return nil, nil
	}
	fields := strings.Split(argsCSV, ",")
	for _, f := range fields {
		if f == "" {
			return nil, ErrEmptyField
		}
	}
	return fields, nil
}

// BuildArgv returns the argv a worker should exec for one task. prog is
// used as given; callers resolve a greeting-level custom path first with
// ResolveProgramPath.
func BuildArgv(t protocol.TaskType, prog string, taskNumber int, argsCSV string) ([]string, error) {
	switch t {
	case protocol.Maple:
		return []string{
			"maple",
			fmt.Sprintf("-tc \"taskId:=%d\"", taskNumber),
			fmt.Sprintf("-c \"taskArgs:=[%s]\"", argsCSV),
			prog,
		}, nil

	case protocol.C:
		fields, err := Split(argsCSV)
		if err != nil {
			return nil, err
		}
		argv := make([]string, 0, 2+len(fields))
		argv = append(argv, prog, fmt.Sprintf("%d", taskNumber))
		argv = append(argv, fields...)
		return argv, nil

	case protocol.Python:
		fields, err := Split(argsCSV)
		if err != nil {
			return nil, err
		}
		argv := make([]string, 0, 3+len(fields))
		argv = append(argv, "python", prog, fmt.Sprintf("%d", taskNumber))
		argv = append(argv, fields...)
		return argv, nil

	case protocol.Pari:
		return []string{"gp", "-q", prog}, nil

	case protocol.Sage:
		return []string{"sage", prog}, nil

	case protocol.Octave:
		return []string{"octave", "--no-gui", prog}, nil

	default:
		return nil, fmt.Errorf("unknown task type %v", t)
	}
}

// ResolveProgramPath implements the customPath-wins-if-set rule from
// the program-path resolution rule.
func ResolveProgramPath(programFile string, customPath bool, programPath string) string {
	if customPath {
		return programPath
	}
	return programFile
}
