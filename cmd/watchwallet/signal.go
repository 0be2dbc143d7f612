// Copyright (c) 2026 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"os"
	"os/signal"
	"syscall"
)

// interruptSignals are the signals that trigger a clean shutdown.
var interruptSignals = []os.Signal{os.Interrupt, syscall.SIGTERM}

// interruptListener runs the registered shutdown handlers, in LIFO order, when
// an interrupt signal arrives.
type interruptListener struct {
	signals  chan os.Signal
	handlers chan func()
	done     chan struct{}
}

func newInterruptListener() *interruptListener {
	l := &interruptListener{
		signals:  make(chan os.Signal, 1),
		handlers: make(chan func()),
		done:     make(chan struct{}),
	}
	signal.Notify(l.signals, interruptSignals...)
	go l.run()

	return l
}

func (l *interruptListener) run() {
	var callbacks []func()
	for {
		select {
		case sig := <-l.signals:
			log.Infof("Received signal (%s).  Shutting down...", sig)
			for i := len(callbacks) - 1; i >= 0; i-- {
				callbacks[i]()
			}
			close(l.done)

			// Further signals are ignored while exiting.
			for range l.signals {
				log.Infof("Already shutting down...")
			}
			return

		case handler := <-l.handlers:
			callbacks = append(callbacks, handler)
		}
	}
}

// addInterruptHandler adds a handler to call on shutdown.
func (l *interruptListener) addInterruptHandler(handler func()) {
	l.handlers <- handler
}

// Done is closed once shutdown has completed.
func (l *interruptListener) Done() <-chan struct{} {
	return l.done
}
