// Package nodefile parses the cluster's node file: one "hostname cores"
// line per node. Parsing depth here is deliberately shallow -- a thin,
// line-oriented reader, not a core component.
package nodefile

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/oscarsaleta/PVMantz/internal/protocol"
)

// Read parses path into an ordered slice of NodeSpecs.
func Read(path string) ([]protocol.NodeSpec, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var nodes []protocol.NodeSpec
	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 2 {
			return nil, fmt.Errorf("nodefile: line %d: expected \"host cores\", got %q", lineNo, line)
		}
		cores, err := strconv.Atoi(fields[1])
		if err != nil || cores <= 0 {
			return nil, fmt.Errorf("nodefile: line %d: invalid core count %q", lineNo, fields[1])
		}
		nodes = append(nodes, protocol.NodeSpec{Host: fields[0], Cores: cores})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if len(nodes) == 0 {
		return nil, fmt.Errorf("nodefile: %s has no node lines", path)
	}
	return nodes, nil
}

// TotalCores sums Cores across nodes -- this is W, the worker pool size.
func TotalCores(nodes []protocol.NodeSpec) int {
	total := 0
	for _, n := range nodes {
		total += n.Cores
	}
	return total
}
