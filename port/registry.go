// Copyright (c) 2026 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package port

import (
	"sync"
)

// Registry is an in-process Sink for Go hosts.  Every opened Port gets a fresh
// address and an unbounded receive queue, so posters are never held up by a
// slow reader.
type Registry struct {
	mu    sync.RWMutex
	next  Address
	ports map[Address]*Port
}

// A compile-time check to ensure that Registry satisfies the Sink interface.
var _ Sink = (*Registry)(nil)

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		ports: make(map[Address]*Port),
	}
}

// Open allocates a new port.  Addresses start at 1 and are never reused
// within a registry.
func (r *Registry) Open() *Port {
	r.mu.Lock()
	r.next++
	p := &Port{
		addr:     r.next,
		registry: r,
		enqueue:  make(chan Message),
		dequeue:  make(chan Message),
		quit:     make(chan struct{}),
	}
	r.ports[p.addr] = p
	r.mu.Unlock()

	p.wg.Add(1)
	go p.handler()

	return p
}

// Post implements Sink.  It returns false if no open port has the address.
func (r *Registry) Post(addr Address, msg Message) bool {
	r.mu.RLock()
	p, ok := r.ports[addr]
	r.mu.RUnlock()
	if !ok {
		log.Debugf("Dropping %v for unknown port %d", msg.Tag(), addr)
		return false
	}

	return p.post(msg)
}

// Len returns the number of open ports.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.ports)
}

func (r *Registry) remove(addr Address) {
	r.mu.Lock()
	delete(r.ports, addr)
	r.mu.Unlock()
}

// Port is one receive endpoint of a Registry.
type Port struct {
	addr     Address
	registry *Registry

	enqueue chan Message
	dequeue chan Message

	quit      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// Address returns the address hosts hand to the native side.
func (p *Port) Address() Address {
	return p.addr
}

// Messages returns the channel of messages posted to the port, in post
// order.  The channel is closed after Close.
func (p *Port) Messages() <-chan Message {
	return p.dequeue
}

// Close unregisters the port and discards anything not yet received.  Posts
// racing with Close either land before it or report false.
func (p *Port) Close() {
	p.closeOnce.Do(func() {
		p.registry.remove(p.addr)
		close(p.quit)
	})
	p.wg.Wait()
}

func (p *Port) post(msg Message) bool {
	select {
	case p.enqueue <- msg:
		return true
	case <-p.quit:
		return false
	}
}

// handler maintains the queue of posted messages until the port is closed.
func (p *Port) handler() {
	defer p.wg.Done()
	defer close(p.dequeue)

	var (
		queue   []Message
		dequeue chan Message
		next    Message
	)
	for {
		select {
		case msg := <-p.enqueue:
			if len(queue) == 0 {
				next = msg
				dequeue = p.dequeue
			}
			queue = append(queue, msg)

		case dequeue <- next:
			queue[0] = nil
			queue = queue[1:]
			if len(queue) != 0 {
				next = queue[0]
			} else {
				next = nil
				dequeue = nil
			}

		case <-p.quit:
			if len(queue) > 0 {
				log.Debugf("Port %d closed with %d undelivered "+
					"messages", p.addr, len(queue))
			}
			return
		}
	}
}
