// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

/*
Package progress shows one status line per input file while a command works through them.
*/
package progress

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"golang.org/x/term"
)

var spinChars []string = []string{"⣾", "⣽", "⣻", "⢿", "⡿", "⣟", "⣯", "⣷"}

// MultiSpinnerUpdateFunc updates the status of the spinner with the given label
type MultiSpinnerUpdateFunc func(label string, status string) error

type spinnerState struct {
	label       string
	status      string
	statusIsNew bool
	spinIndex   int
}

// MultiSpinner redraws its status lines in place on a terminal. When the output is not a
// terminal only changed statuses are printed, one line each.
type MultiSpinner struct {
	mu       sync.Mutex
	out      io.Writer
	isTerm   bool
	spinners []spinnerState
	ticker   *time.Ticker
	done     chan bool
	spinning bool
}

// NewMultiSpinner creates a MultiSpinner writing to stderr
func NewMultiSpinner() *MultiSpinner {
	return NewMultiSpinnerTo(os.Stderr, term.IsTerminal(int(os.Stderr.Fd())))
}

// NewMultiSpinnerTo creates a MultiSpinner writing to out
func NewMultiSpinnerTo(out io.Writer, isTerminal bool) *MultiSpinner {
	return &MultiSpinner{out: out, isTerm: isTerminal, done: make(chan bool)}
}

// AddSpinner adds a status line, labels must be unique
func (ms *MultiSpinner) AddSpinner(label string) (err error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	for _, spinner := range ms.spinners {
		if spinner.label == label {
			err = fmt.Errorf("spinner with label %s already exists", label)
			return
		}
	}
	ms.spinners = append(ms.spinners, spinnerState{label, "?", false, 0})
	return
}

// Start draws the spinners and keeps them moving until Finish
func (ms *MultiSpinner) Start() {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	if ms.spinning {
		return
	}
	ms.draw(true)
	ms.ticker = time.NewTicker(250 * time.Millisecond)
	ms.spinning = true
	go ms.onTick()
}

// Finish stops the spinners and draws the final statuses
func (ms *MultiSpinner) Finish() {
	ms.mu.Lock()
	spinning := ms.spinning
	ms.mu.Unlock()
	if !spinning {
		return
	}
	ms.ticker.Stop()
	ms.done <- true
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.draw(false)
	ms.spinning = false
}

// Status updates the status of the spinner with the given label
func (ms *MultiSpinner) Status(label string, status string) (err error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	for spinnerIdx, spinner := range ms.spinners {
		if spinner.label == label {
			if status != spinner.status {
				ms.spinners[spinnerIdx].status = status
				ms.spinners[spinnerIdx].statusIsNew = true
			}
			return
		}
	}
	err = fmt.Errorf("did not find spinner with label %s", label)
	return
}

func (ms *MultiSpinner) onTick() {
	for {
		select {
		case <-ms.done:
			return
		case <-ms.ticker.C:
			ms.mu.Lock()
			ms.draw(true)
			ms.mu.Unlock()
		}
	}
}

// draw must be called with ms.mu held
func (ms *MultiSpinner) draw(goUp bool) {
	for i, spinner := range ms.spinners {
		if !ms.isTerm && !spinner.statusIsNew {
			continue
		}
		fmt.Fprintf(ms.out, "%-30s  %s  %-50s\n", spinner.label, spinChars[spinner.spinIndex], spinner.status)
		ms.spinners[i].statusIsNew = false
		ms.spinners[i].spinIndex = (ms.spinners[i].spinIndex + 1) % len(spinChars)
	}
	if goUp && ms.isTerm {
		for range ms.spinners {
			fmt.Fprintf(ms.out, "\x1b[1A")
		}
	}
}
