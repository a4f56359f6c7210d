// Package poller follows an asynchronous translation task until it reaches a
// terminal status, the poll ceiling, or an error.
package poller

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"menu_translator/translation_task"
)

const (
	DefaultInterval = 2 * time.Second
	DefaultMaxPolls = 30
)

// ErrPollTimeout 达到最大轮询次数仍未进入终态。
var ErrPollTimeout = errors.New("translation task did not finish before the poll limit")

// Fetcher 查询一次任务状态。
type Fetcher interface {
	GetTask(ctx context.Context, taskID string) (translation_task.Task, error)
}

// Update 每次轮询结果。Done 为 true 的更新是最后一条，之后通道关闭。
type Update struct {
	Task translation_task.Task
	Err  error
	Done bool
}

// Poller 同一时刻最多运行一个轮询循环：Start 会先取消并等待上一个循环退出。
type Poller struct {
	Interval time.Duration
	MaxPolls int

	fetcher Fetcher
	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
}

func New(fetcher Fetcher) *Poller {
	return &Poller{
		Interval: DefaultInterval,
		MaxPolls: DefaultMaxPolls,
		fetcher:  fetcher,
	}
}

// Start 开始轮询 taskID，每个 Interval 查询一次。
func (p *Poller) Start(ctx context.Context, taskID string) <-chan Update {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.stopLocked()

	loopCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	updates := make(chan Update, 1)
	p.cancel = cancel
	p.done = done

	interval := p.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	maxPolls := p.MaxPolls
	if maxPolls <= 0 {
		maxPolls = DefaultMaxPolls
	}

	go p.run(loopCtx, taskID, interval, maxPolls, updates, done)
	return updates
}

// Cancel 停止当前轮询并等待循环退出；没有进行中的轮询时为空操作。
func (p *Poller) Cancel() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopLocked()
}

func (p *Poller) stopLocked() {
	if p.cancel == nil {
		return
	}
	p.cancel()
	<-p.done
	p.cancel = nil
	p.done = nil
}

func (p *Poller) run(ctx context.Context, taskID string, interval time.Duration, maxPolls int, updates chan<- Update, done chan<- struct{}) {
	defer close(done)
	defer close(updates)

	send := func(u Update) bool {
		select {
		case updates <- u:
			return true
		case <-ctx.Done():
			return false
		}
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var last translation_task.Task
	for poll := 1; poll <= maxPolls; poll++ {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		task, err := p.fetcher.GetTask(ctx, taskID)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			log.Printf("[poller] task=%s poll=%d/%d failed: %v", taskID, poll, maxPolls, err)
			send(Update{Task: last, Err: err, Done: true})
			return
		}

		last = task
		if task.Status.Terminal() {
			log.Printf("[poller] task=%s finished after %d polls: status=%s", taskID, poll, task.Status)
			send(Update{Task: task, Done: true})
			return
		}
		if !send(Update{Task: task}) {
			return
		}
	}

	log.Printf("[poller] task=%s gave up after %d polls", taskID, maxPolls)
	send(Update{Task: last, Err: ErrPollTimeout, Done: true})
}
