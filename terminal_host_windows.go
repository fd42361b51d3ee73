//go:build windows

// terminal_host_windows.go - Console stdin reader for the keyboard piano

package main

import (
	"fmt"
	"os"
	"time"

	"golang.org/x/term"
)

// Start puts the console in raw mode and begins reading in a goroutine.
// Console reads block, so bytes are handed to a second loop that also
// releases held notes. Call Stop() to restore the console.
func (h *TerminalHost) Start() {
	h.fd = int(os.Stdin.Fd())

	oldState, err := term.MakeRaw(h.fd)
	if err != nil {
		fmt.Fprintf(os.Stderr, "terminal_host: failed to set raw mode: %v\n", err)
		close(h.done)
		h.requestQuit()
		return
	}
	h.oldTermState = oldState

	h.engine.Send(MidiEvent{Type: MIDI_PROGRAM_CHANGE, Channel: h.channel, Data1: uint8(h.program)})
	h.printStatus()

	keys := make(chan byte, 16)
	go func() {
		buf := make([]byte, 1)
		for {
			n, err := os.Stdin.Read(buf)
			if n > 0 {
				select {
				case keys <- buf[0]:
				case <-h.stopCh:
					return
				}
			}
			if err != nil {
				return
			}
		}
	}()

	go func() {
		defer close(h.done)
		tick := time.NewTicker(20 * time.Millisecond)
		defer tick.Stop()
		for {
			select {
			case <-h.stopCh:
				return
			case b := <-keys:
				h.handleKey(b)
			case now := <-tick.C:
				h.releaseExpired(now)
			}
		}
	}()
}

// Stop terminates the key loop and restores the console.
func (h *TerminalHost) Stop() {
	h.stopped.Do(func() {
		close(h.stopCh)
	})
	<-h.done
	if h.oldTermState != nil {
		_ = term.Restore(h.fd, h.oldTermState)
		h.oldTermState = nil
	}
	fmt.Println()
}
