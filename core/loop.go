package session

import "sync"

// commandLoop runs commands one at a time on a single goroutine, in the order
// they were posted. Posting never blocks, so commands may post further
// commands and listeners running on the loop may call back into the session.
type commandLoop struct {
	mu     sync.Mutex
	queue  []func()
	closed bool

	signal    chan struct{}
	closeCh   chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

func newCommandLoop() *commandLoop {
	loop := &commandLoop{
		signal:  make(chan struct{}, 1),
		closeCh: make(chan struct{}),
		done:    make(chan struct{}),
	}
	go loop.run()
	return loop
}

// post enqueues cmd. It reports false once the loop is closed.
func (loop *commandLoop) post(cmd func()) bool {
	loop.mu.Lock()
	if loop.closed {
		loop.mu.Unlock()
		return false
	}
	loop.queue = append(loop.queue, cmd)
	loop.mu.Unlock()

	select {
	case loop.signal <- struct{}{}:
	default:
	}
	return true
}

func (loop *commandLoop) run() {
	defer close(loop.done)

	for {
		select {
		case <-loop.closeCh:
			return
		case <-loop.signal:
		}

		for {
			cmd, ok := loop.next()
			if !ok {
				break
			}
			cmd()

			select {
			case <-loop.closeCh:
				return
			default:
			}
		}
	}
}

func (loop *commandLoop) next() (func(), bool) {
	loop.mu.Lock()
	defer loop.mu.Unlock()
	if len(loop.queue) == 0 {
		return nil, false
	}

	cmd := loop.queue[0]
	loop.queue[0] = nil
	loop.queue = loop.queue[1:]
	return cmd, true
}

// close drops queued commands and stops the loop after the running command.
func (loop *commandLoop) close() {
	loop.closeOnce.Do(func() {
		loop.mu.Lock()
		loop.closed = true
		loop.queue = nil
		loop.mu.Unlock()
		close(loop.closeCh)
	})
}
