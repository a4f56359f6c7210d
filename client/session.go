package client

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"menu_translator/client/poller"
	"menu_translator/translation_task"
)

// State 拍照翻译流程的阶段。
type State int

const (
	StateIdle State = iota
	StateActive
	StateProcessing
	StateResults
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateActive:
		return "active"
	case StateProcessing:
		return "processing"
	case StateResults:
		return "results"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

var (
	ErrInvalidTransition = errors.New("invalid session transition")
	ErrNoCapturedImage   = errors.New("no captured image to retry")
)

// Uploader 创建异步翻译任务。
type Uploader interface {
	Upload(ctx context.Context, img ImageInput, toLang, fromLang string) (translation_task.Task, error)
}

// TaskAPI 上传与查询，APIClient 同时满足两者。
type TaskAPI interface {
	Uploader
	poller.Fetcher
}

// Session idle → active → processing → results 状态机。
// 离开 processing/results 时取消轮询；过期循环的更新不会覆盖新状态。
type Session struct {
	ToLang   string
	FromLang string

	api    Uploader
	poller *poller.Poller

	mu        sync.Mutex
	state     State
	gen       int
	stop      chan struct{}
	lastImage *ImageInput
	task      translation_task.Task
	err       error
}

func NewSession(api TaskAPI, toLang, fromLang string) *Session {
	return &Session{
		ToLang:   toLang,
		FromLang: fromLang,
		api:      api,
		poller:   poller.New(api),
	}
}

// Poller 暴露轮询器以便调整间隔与上限。
func (s *Session) Poller() *poller.Poller {
	return s.poller
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Result 返回最近一次任务状态与失败原因。
func (s *Session) Result() (translation_task.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.task, s.err
}

// Open 打开相机或图片选择：idle → active。
func (s *Session) Open() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateIdle {
		return fmt.Errorf("%w: open from %s", ErrInvalidTransition, s.state)
	}
	s.state = StateActive
	return nil
}

// Submit 上传图片并开始轮询：active → processing。
// 返回的通道转发每次轮询结果，最后一条 Done 为 true；上传响应已是终态时不轮询。
func (s *Session) Submit(ctx context.Context, img ImageInput) (<-chan poller.Update, error) {
	s.mu.Lock()
	if s.state != StateActive {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: submit from %s", ErrInvalidTransition, s.state)
	}
	captured := img
	s.lastImage = &captured
	gen, stop := s.beginLocked()
	toLang, fromLang := s.ToLang, s.FromLang
	s.mu.Unlock()

	task, err := s.api.Upload(ctx, img, toLang, fromLang)
	if err != nil {
		s.finish(gen, task, err)
		return nil, err
	}
	if !s.apply(gen, poller.Update{Task: task}) {
		return nil, fmt.Errorf("%w: session left processing during upload", ErrInvalidTransition)
	}

	out := make(chan poller.Update, 1)
	if task.Status.Terminal() {
		final := poller.Update{Task: task, Done: true}
		s.apply(gen, final)
		out <- final
		close(out)
		return out, nil
	}

	// 代数校验与启动轮询在同一临界区内，Exit/Retake 的 Cancel 必然晚于 Start。
	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: session left processing during upload", ErrInvalidTransition)
	}
	updates := s.poller.Start(ctx, task.TaskID)
	s.mu.Unlock()

	go func() {
		defer close(out)
		for u := range updates {
			if !s.apply(gen, u) {
				return
			}
			select {
			case out <- u:
			case <-stop:
				return
			}
		}
	}()
	return out, nil
}

// Retry 重新提交上一次拍摄的图片。
func (s *Session) Retry(ctx context.Context) (<-chan poller.Update, error) {
	s.mu.Lock()
	if s.lastImage == nil {
		s.mu.Unlock()
		return nil, ErrNoCapturedImage
	}
	img := *s.lastImage
	if s.state == StateProcessing || s.state == StateResults {
		s.advanceLocked()
		s.state = StateActive
	}
	s.mu.Unlock()

	s.poller.Cancel()
	return s.Submit(ctx, img)
}

// Retake 回到拍摄：processing/results → active。
func (s *Session) Retake() error {
	s.mu.Lock()
	if s.state != StateProcessing && s.state != StateResults {
		current := s.state
		s.mu.Unlock()
		return fmt.Errorf("%w: retake from %s", ErrInvalidTransition, current)
	}
	s.advanceLocked()
	s.state = StateActive
	s.task = translation_task.Task{}
	s.err = nil
	s.mu.Unlock()

	s.poller.Cancel()
	return nil
}

// Exit 关闭流程回到 idle，任何状态都可调用。
func (s *Session) Exit() {
	s.mu.Lock()
	s.advanceLocked()
	s.state = StateIdle
	s.task = translation_task.Task{}
	s.err = nil
	s.lastImage = nil
	s.mu.Unlock()

	s.poller.Cancel()
}

func (s *Session) beginLocked() (int, <-chan struct{}) {
	s.advanceLocked()
	s.state = StateProcessing
	s.task = translation_task.Task{}
	s.err = nil
	return s.gen, s.stop
}

// advanceLocked 使之前所有转发协程失效。
func (s *Session) advanceLocked() {
	s.gen++
	if s.stop != nil {
		close(s.stop)
	}
	s.stop = make(chan struct{})
}

// apply 仅在代数匹配时写入更新；终态更新进入 results。
func (s *Session) apply(gen int, u poller.Update) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		return false
	}
	s.task = u.Task
	if u.Done {
		s.err = u.Err
		s.state = StateResults
	}
	return true
}

func (s *Session) finish(gen int, task translation_task.Task, err error) {
	s.apply(gen, poller.Update{Task: task, Err: err, Done: true})
}
