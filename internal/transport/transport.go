// Package transport spawns worker processes and dials them back over a
// net/rpc-over-TCP connection, local or remote. A worker is reached the
// same way either way: Spawn returns a live *rpc.Client and the ssh
// exec.Cmd (or nil, for an in-process worker) behind it.
package transport

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"net/rpc"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/oscarsaleta/PVMantz/internal/protocol"
)

// Handle is a live connection to one spawned worker.
type Handle struct {
	WorkerID protocol.WorkerID
	Client   *rpc.Client

	// Cmd is non-nil for a remote (ssh-spawned) worker; Close waits on it.
	Cmd *exec.Cmd

	// stop, if non-nil, tears down an in-process listener.
	stop func()
}

// Close closes the RPC client and, for a remote worker, releases the ssh
// child process; for an in-process worker it stops the local listener.
func (h *Handle) Close() error {
	err := h.Client.Close()
	if h.stop != nil {
		h.stop()
	}
	if h.Cmd != nil && h.Cmd.Process != nil {
		h.Cmd.Process.Kill()
		h.Cmd.Wait()
	}
	return err
}

// Spawn starts a worker for node and dials it, returning a usable Handle.
// An empty or "localhost" host starts an in-process worker bound to an
// ephemeral 127.0.0.1 port, registering svc as its RPC service -- used for
// single-machine runs and tests, where there is no real node to ssh into.
// Any other host execs "ssh host workerBinary -listen :0" and scans its
// stdout for the "LISTENING <port>" sentinel line pbala-worker prints once
// bound, then dials that port on the node's host over tcp.
func Spawn(ctx context.Context, workerID protocol.WorkerID, node protocol.NodeSpec, workerBinary string, svc interface{}) (*Handle, error) {
	if node.Host == "" || node.Host == "localhost" {
		return spawnLocal(workerID, svc)
	}
	return spawnRemote(ctx, workerID, node, workerBinary)
}

func spawnLocal(workerID protocol.WorkerID, svc interface{}) (*Handle, error) {
	server := rpc.NewServer()
	if err := server.Register(svc); err != nil {
		return nil, fmt.Errorf("registering worker %d service: %w", workerID, err)
	}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, fmt.Errorf("spawning in-process worker %d: %w", workerID, err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go server.ServeConn(conn)
		}
	}()

	client, err := rpc.Dial("tcp", ln.Addr().String())
	if err != nil {
		ln.Close()
		return nil, fmt.Errorf("dialing in-process worker %d: %w", workerID, err)
	}

	return &Handle{
		WorkerID: workerID,
		Client:   client,
		stop: func() {
			ln.Close()
			<-done
		},
	}, nil
}

// listeningTimeout bounds how long Spawn waits for a remote worker to print
// its sentinel line before giving up.
const listeningTimeout = 30 * time.Second

func spawnRemote(ctx context.Context, workerID protocol.WorkerID, node protocol.NodeSpec, workerBinary string) (*Handle, error) {
	cmd := exec.CommandContext(ctx, "ssh", node.Host, workerBinary, "-listen", ":0")
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("spawning worker %d on %s: %w", workerID, node.Host, err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("spawning worker %d on %s: %w", workerID, node.Host, err)
	}

	addrCh := make(chan string, 1)
	errCh := make(chan error, 1)
	go func() {
		scanner := bufio.NewScanner(stdout)
		for scanner.Scan() {
			line := scanner.Text()
			if rest, ok := strings.CutPrefix(line, "LISTENING "); ok {
				port, err := ParseListeningPort(rest)
				if err != nil {
					errCh <- fmt.Errorf("worker %d on %s: malformed LISTENING line %q: %w", workerID, node.Host, line, err)
					return
				}
				addrCh <- net.JoinHostPort(node.Host, strconv.Itoa(port))
				return
			}
		}
		errCh <- fmt.Errorf("worker %d on %s exited before printing a LISTENING sentinel", workerID, node.Host)
	}()

	var addr string
	select {
	case addr = <-addrCh:
	case err := <-errCh:
		cmd.Process.Kill()
		return nil, err
	case <-time.After(listeningTimeout):
		cmd.Process.Kill()
		return nil, fmt.Errorf("worker %d on %s: timed out waiting for LISTENING sentinel", workerID, node.Host)
	case <-ctx.Done():
		cmd.Process.Kill()
		return nil, ctx.Err()
	}

	client, err := rpc.Dial("tcp", addr)
	if err != nil {
		cmd.Process.Kill()
		return nil, fmt.Errorf("dialing worker %d at %s: %w", workerID, addr, err)
	}

	return &Handle{WorkerID: workerID, Client: client, Cmd: cmd}, nil
}

// ParseListeningPort extracts the port number from the text after
// "LISTENING " in the sentinel line; it accepts either "host:port" or a
// bare port, which is what cmd/pbala-worker prints once bound.
func ParseListeningPort(addr string) (int, error) {
	_, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		// bare port form, e.g. "41235"
		portStr = addr
	}
	return strconv.Atoi(portStr)
}
