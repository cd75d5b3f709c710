// terminal_keys.go - Raw-mode keyboard transport control.

package main

import (
	"fmt"
	"os"
	"sync"
	"syscall"
	"time"

	"golang.org/x/term"
)

const VOLUME_STEP = 0.05

// TerminalKeys reads raw stdin and drives the transport. Only
// instantiated in main.go for interactive use, never in tests.
type TerminalKeys struct {
	transport *TransportController
	onQuit    func()

	stopCh  chan struct{}
	done    chan struct{}
	stopped sync.Once

	fd           int
	nonblockSet  bool
	oldTermState *term.State
}

func NewTerminalKeys(transport *TransportController, onQuit func()) *TerminalKeys {
	return &TerminalKeys{
		transport: transport,
		onQuit:    onQuit,
		stopCh:    make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// Start sets stdin to raw non-blocking mode and begins reading keys in
// a goroutine. Call Stop() to restore stdin.
func (h *TerminalKeys) Start() {
	h.fd = int(os.Stdin.Fd())

	oldState, err := term.MakeRaw(h.fd)
	if err != nil {
		fmt.Fprintf(os.Stderr, "terminal_keys: failed to set raw mode: %v\n", err)
		close(h.done)
		return
	}
	h.oldTermState = oldState

	if err := syscall.SetNonblock(h.fd, true); err != nil {
		fmt.Fprintf(os.Stderr, "terminal_keys: failed to set nonblocking stdin: %v\n", err)
		_ = term.Restore(h.fd, h.oldTermState)
		h.oldTermState = nil
		close(h.done)
		return
	}
	h.nonblockSet = true

	go func() {
		defer close(h.done)
		buf := make([]byte, 1)

		for {
			select {
			case <-h.stopCh:
				return
			default:
			}

			n, err := syscall.Read(h.fd, buf)
			if n > 0 {
				h.handleKey(buf[0])
			}
			if err == syscall.EAGAIN || err == syscall.EWOULDBLOCK {
				time.Sleep(5 * time.Millisecond)
				continue
			}
			if err != nil {
				return
			}
			if n == 0 {
				time.Sleep(5 * time.Millisecond)
			}
		}
	}()
}

func (h *TerminalKeys) handleKey(b byte) {
	switch b {
	case ' ':
		h.transport.TogglePause()
	case 'n', 'N':
		_ = h.transport.Next()
	case 'p', 'P':
		_ = h.transport.Previous()
	case 's', 'S':
		h.transport.SetShuffle(!h.transport.Shuffle())
	case 'r', 'R':
		h.transport.CycleRepeat()
	case '+', '=':
		h.transport.SetVolume(h.transport.Volume() + VOLUME_STEP)
	case '-', '_':
		h.transport.SetVolume(h.transport.Volume() - VOLUME_STEP)
	case 'q', 'Q', 0x03: // Ctrl-C arrives as a byte in raw mode
		if h.onQuit != nil {
			h.onQuit()
		}
	}
}

// Stop terminates the reading goroutine and restores stdin.
func (h *TerminalKeys) Stop() {
	h.stopped.Do(func() {
		close(h.stopCh)
	})
	<-h.done
	if h.nonblockSet {
		_ = syscall.SetNonblock(h.fd, false)
		h.nonblockSet = false
	}
	if h.oldTermState != nil {
		_ = term.Restore(h.fd, h.oldTermState)
		h.oldTermState = nil
	}
}
