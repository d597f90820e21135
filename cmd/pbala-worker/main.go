// Command pbala-worker is the process a remote node execs over ssh: it
// binds a listener, registers a single Worker as an RPC service, prints the
// LISTENING sentinel line transport.Spawn scans for, and serves calls until
// told to stop.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net"
	"net/rpc"
	"os"
	"os/signal"
	"syscall"

	"github.com/oscarsaleta/PVMantz/internal/protocol"
	"github.com/oscarsaleta/PVMantz/internal/worker"
)

func main() {
	listen := flag.String("listen", ":0", "address to bind the worker's RPC listener")
	workerID := flag.Int("id", 0, "worker id assigned by the master's spawn phase")
	flag.Parse()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("pbala-worker: received signal, shutting down")
		cancel()
	}()

	if err := run(ctx, *listen, protocol.WorkerID(*workerID)); err != nil {
		log.Fatalf("pbala-worker: %v", err)
	}
}

func run(ctx context.Context, listenAddr string, id protocol.WorkerID) error {
	w := worker.New(id)
	w.SetContext(ctx)

	server := rpc.NewServer()
	if err := server.Register(w); err != nil {
		return fmt.Errorf("registering worker service: %w", err)
	}

	ln, err := net.Listen("tcp", listenAddr)
	if err != nil {
		return fmt.Errorf("binding listener: %w", err)
	}
	defer ln.Close()

	_, port, err := net.SplitHostPort(ln.Addr().String())
	if err != nil {
		return fmt.Errorf("resolving bound address: %w", err)
	}
	fmt.Printf("LISTENING %s\n", port)
	os.Stdout.Sync()

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	go func() {
		<-w.Stopped
		log.Println("pbala-worker: received STOP, exiting")
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			case <-w.Stopped:
				return nil
			default:
				return fmt.Errorf("accept: %w", err)
			}
		}
		go server.ServeConn(conn)
	}
}
