// Copyright 2026 Palantir Technologies, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package tagmetrics

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/palantir/go-tagmetrics/pkg/errfmt"
)

type tickable interface {
	Tagged
	tick()
}

type processorState int

const (
	stateStopped processorState = iota
	stateRunning
	stateStopping
)

func (s processorState) String() string {
	switch s {
	case stateStopped:
		return "stopped"
	case stateRunning:
		return "running"
	case stateStopping:
		return "stopping"
	}
	return "unknown"
}

// processor periodically ticks every live meter and timer in a registry. It
// never adds or removes registry entries.
type processor struct {
	interval time.Duration
	clock    clockwork.Clock
	logger   zerolog.Logger
	walk     func() []tickable

	mu    sync.Mutex
	state processorState
	stop  chan struct{}
	done  chan struct{}
}

func newProcessor(interval time.Duration, clock clockwork.Clock, logger zerolog.Logger, walk func() []tickable) *processor {
	return &processor{
		interval: interval,
		clock:    clock,
		logger:   logger,
		walk:     walk,
	}
}

func (p *processor) start() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state != stateStopped {
		return
	}

	p.state = stateRunning
	p.stop = make(chan struct{})
	p.done = make(chan struct{})
	go p.run(p.stop, p.done)

	p.logger.Debug().Dur("interval", p.interval).Msg("Started metrics processor")
}

// shutdown signals the processor goroutine and waits for it to exit.
func (p *processor) shutdown() {
	p.mu.Lock()
	switch p.state {
	case stateStopped:
		p.mu.Unlock()
		return
	case stateRunning:
		p.state = stateStopping
		close(p.stop)
	}
	done := p.done
	p.mu.Unlock()

	<-done

	p.mu.Lock()
	if p.state == stateStopping {
		p.state = stateStopped
		p.logger.Debug().Msg("Stopped metrics processor")
	}
	p.mu.Unlock()
}

func (p *processor) currentState() processorState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *processor) run(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := p.clock.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.Chan():
			p.tickAll()
		}
	}
}

// tickAll ticks every live metric and returns the number that failed.
func (p *processor) tickAll() int {
	failed := 0
	for _, m := range p.walk() {
		if !p.tickOne(m) {
			failed++
		}
	}
	return failed
}

func (p *processor) tickOne(m tickable) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			err, isErr := r.(error)
			if isErr {
				err = errors.WithStack(err)
			} else {
				err = errors.Errorf("panic: %v", r)
			}

			p.logger.Error().
				Str("metric", m.Tags().String()).
				Str("error", errfmt.Print(err)).
				Msg("Failed to tick metric")
			ok = false
		}
	}()

	m.tick()
	return true
}
