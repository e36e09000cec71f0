// Copyright 2026 Blink Labs Software
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
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// TaskFunc is run when a task is due. The context is cancelled on Stop.
type TaskFunc func(ctx context.Context)

type scheduledTask struct {
	name              string
	interval          int
	ticksSinceLastRun int
	task              TaskFunc
	skipFunc          func()
	running           atomic.Bool
}

// Scheduler runs registered tasks every N ticks of a base interval. A task
// never overlaps with itself: a due task that is still running is skipped
// and its skip func is called instead.
type Scheduler struct {
	mutex              sync.Mutex
	logger             *slog.Logger
	interval           time.Duration
	ticker             *time.Ticker
	quit               chan struct{}
	updateIntervalChan chan time.Duration
	tasks              []*scheduledTask
	startOnce          sync.Once
	stopOnce           sync.Once
	ctx                context.Context
	cancel             context.CancelFunc
	wg                 sync.WaitGroup
}

func NewScheduler(interval time.Duration, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		logger:             logger.With("component", "scheduler"),
		interval:           interval,
		quit:               make(chan struct{}),
		updateIntervalChan: make(chan time.Duration),
		ctx:                ctx,
		cancel:             cancel,
	}
}

// Interval returns the current tick interval
func (st *Scheduler) Interval() time.Duration {
	st.mutex.Lock()
	defer st.mutex.Unlock()
	return st.interval
}

// TicksFor converts a task period into a tick count, rounding up
func (st *Scheduler) TicksFor(period time.Duration) int {
	interval := st.Interval()
	if period <= interval {
		return 1
	}
	ticks := period / interval
	if period%interval != 0 {
		ticks++
	}
	return int(ticks)
}

// Start the timer (run goroutine once)
func (st *Scheduler) Start() {
	st.startOnce.Do(func() {
		st.mutex.Lock()
		st.ticker = time.NewTicker(st.interval)
		st.mutex.Unlock()
		st.wg.Add(1)
		go st.run()
	})
}

func (st *Scheduler) run() {
	defer st.wg.Done()
	for {
		st.mutex.Lock()
		tickC := st.ticker.C
		st.mutex.Unlock()
		select {
		case <-tickC:
			st.tick()
		case newInterval := <-st.updateIntervalChan:
			st.mutex.Lock()
			st.ticker.Stop()
			st.ticker = time.NewTicker(newInterval)
			st.interval = newInterval
			st.mutex.Unlock()
		case <-st.quit:
			st.mutex.Lock()
			st.ticker.Stop()
			st.mutex.Unlock()
			return
		}
	}
}

// Increments per-task tick counters and executes tasks when due
func (st *Scheduler) tick() {
	st.mutex.Lock()
	defer st.mutex.Unlock()
	for _, task := range st.tasks {
		task.ticksSinceLastRun++
		if task.ticksSinceLastRun < task.interval {
			continue
		}
		task.ticksSinceLastRun = 0
		st.launch(task)
	}
}

func (st *Scheduler) launch(task *scheduledTask) {
	if st.ctx.Err() != nil {
		return
	}
	if !task.running.CompareAndSwap(false, true) {
		st.logger.Debug("task still running, skipping", "task", task.name)
		if task.skipFunc != nil {
			task.skipFunc()
		}
		return
	}
	st.wg.Add(1)
	go func() {
		defer st.wg.Done()
		defer task.running.Store(false)
		start := time.Now()
		task.task(st.ctx)
		st.logger.Debug(
			"task finished",
			"task", task.name,
			"duration", time.Since(start),
		)
	}()
}

// Register adds a task that runs every interval ticks. skipFunc may be nil.
func (st *Scheduler) Register(
	name string,
	interval int,
	task TaskFunc,
	skipFunc func(),
) {
	if interval < 1 {
		interval = 1
	}
	st.mutex.Lock()
	defer st.mutex.Unlock()
	st.tasks = append(st.tasks, &scheduledTask{
		name:     name,
		interval: interval,
		task:     task,
		skipFunc: skipFunc,
	})
}

// ChangeInterval updates the tick interval of the Scheduler at runtime.
func (st *Scheduler) ChangeInterval(newInterval time.Duration) {
	select {
	case st.updateIntervalChan <- newInterval:
	default:
	}
}

// Stop terminates the ticker, cancels running tasks and waits for them to
// return
func (st *Scheduler) Stop() {
	st.stopOnce.Do(func() {
		close(st.quit)
		st.cancel()
		st.wg.Wait()
	})
}
