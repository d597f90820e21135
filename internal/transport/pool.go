package transport

import (
	"net/rpc"
	"sync"

	"github.com/oscarsaleta/PVMantz/internal/protocol"
)

// Pool holds one Handle per worker and realizes recv(ANY, tag): every
// outstanding Dispatch call across every worker shares the same done
// channel, so draining it is literally "wait for whichever worker replies
// next" -- one client.Go(..., nil) / <-call.Done pair per worker,
// generalized onto a single shared channel for many concurrent clients.
type Pool struct {
	mu      sync.Mutex
	handles map[protocol.WorkerID]*Handle
	pending map[*rpc.Call]protocol.WorkerID
	replyCh chan *rpc.Call
}

// NewPool builds an empty pool; Add populates it as workers are spawned.
func NewPool() *Pool {
	return &Pool{
		handles: make(map[protocol.WorkerID]*Handle),
		pending: make(map[*rpc.Call]protocol.WorkerID),
		replyCh: make(chan *rpc.Call, 64),
	}
}

// Add registers a spawned worker's handle with the pool.
func (p *Pool) Add(h *Handle) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.handles[h.WorkerID] = h
}

// Handle returns the live handle for a worker id, or nil if unknown.
func (p *Pool) Handle(id protocol.WorkerID) *Handle {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.handles[id]
}

// Len reports how many workers are registered.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.handles)
}

// IDs returns the registered worker ids in ascending order.
func (p *Pool) IDs() []protocol.WorkerID {
	p.mu.Lock()
	defer p.mu.Unlock()
	ids := make([]protocol.WorkerID, 0, len(p.handles))
	for id := range p.handles {
		ids = append(ids, id)
	}
	for i := 1; i < len(ids); i++ {
		for j := i; j > 0 && ids[j-1] > ids[j]; j-- {
			ids[j-1], ids[j] = ids[j], ids[j-1]
		}
	}
	return ids
}

// Dispatch fires Worker.Dispatch on workerID asynchronously, registering
// the resulting *rpc.Call against the pool's single shared done channel.
func (p *Pool) Dispatch(workerID protocol.WorkerID, msg *protocol.WorkMessage, result *protocol.ResultMessage) error {
	h := p.Handle(workerID)
	if h == nil {
		return &UnknownWorkerError{WorkerID: workerID}
	}
	call := h.Client.Go("Worker.Dispatch", msg, result, p.replyCh)

	p.mu.Lock()
	p.pending[call] = workerID
	p.mu.Unlock()
	return nil
}

// Recv blocks for the next reply from ANY outstanding Dispatch call and
// reports which worker it came from, realizing a recv(ANY, tag) wait.
func (p *Pool) Recv() (protocol.WorkerID, *rpc.Call) {
	call := <-p.replyCh

	p.mu.Lock()
	workerID := p.pending[call]
	delete(p.pending, call)
	p.mu.Unlock()

	return workerID, call
}

// CloseAll closes every registered handle, e.g. after the drain phase.
func (p *Pool) CloseAll() {
	p.mu.Lock()
	handles := make([]*Handle, 0, len(p.handles))
	for _, h := range p.handles {
		handles = append(handles, h)
	}
	p.mu.Unlock()

	for _, h := range handles {
		h.Close()
	}
}

// UnknownWorkerError is returned by Dispatch when workerID was never Added.
type UnknownWorkerError struct {
	WorkerID protocol.WorkerID
}

func (e *UnknownWorkerError) Error() string {
	return "transport: unknown worker id"
}
