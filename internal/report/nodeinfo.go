package report

import (
	"fmt"
	"os"

	"github.com/oscarsaleta/PVMantz/internal/protocol"
)

// NodeInfo writes node_info.txt, gated on --create-slavefile: a header
// mapping worker id to hostname, followed by one (workerId,taskNumber) CSV
// row per dispatch, for post-mortem.
type NodeInfo struct {
	path string
}

// NewNodeInfo creates path and writes the node-codename header.
func NewNodeInfo(path string, nodes []protocol.NodeSpec) (*NodeInfo, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if _, err := fmt.Fprintln(f, "# NODE CODENAMES"); err != nil {
		return nil, err
	}
	workerID := 0
	for _, n := range nodes {
		for i := 0; i < n.Cores; i++ {
			if _, err := fmt.Fprintf(f, "# Node %2d -> %s\n", workerID, n.Host); err != nil {
				return nil, err
			}
			workerID++
		}
	}
	if _, err := fmt.Fprintln(f, "\nNODE,TASK"); err != nil {
		return nil, err
	}
	return &NodeInfo{path: path}, nil
}

// Assign appends one (workerId,taskNumber) row.
func (n *NodeInfo) Assign(workerID protocol.WorkerID, taskNumber int) error {
	f, err := os.OpenFile(n.path, os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = fmt.Fprintf(f, "%d,%d\n", workerID, taskNumber)
	return err
}
