package story

import (
	"sync"
	"time"

	"dreamteller-api/internal/domain/entity"
)

// Observer 接收生成进度的通知，两个回调都在生成协程中同步调用，实现不得阻塞过久
type Observer interface {
	OnStatus(message string)
	OnImageStatus(sceneIndex int, loading bool)
}

// StageObserver 可选扩展：额外接收阶段切换与整体进度（0-100）
type StageObserver interface {
	OnStage(stage entity.Stage, progress int)
}

// NopObserver 丢弃所有通知
type NopObserver struct{}

func (NopObserver) OnStatus(string)         {}
func (NopObserver) OnImageStatus(int, bool) {}

// ObserverFuncs 用函数字段实现 Observer，nil 字段被忽略
type ObserverFuncs struct {
	Status      func(message string)
	ImageStatus func(sceneIndex int, loading bool)
	Stage       func(stage entity.Stage, progress int)
}

func (f ObserverFuncs) OnStatus(message string) {
	if f.Status != nil {
		f.Status(message)
	}
}

func (f ObserverFuncs) OnImageStatus(sceneIndex int, loading bool) {
	if f.ImageStatus != nil {
		f.ImageStatus(sceneIndex, loading)
	}
}

func (f ObserverFuncs) OnStage(stage entity.Stage, progress int) {
	if f.Stage != nil {
		f.Stage(stage, progress)
	}
}

// multiObserver 按顺序转发给多个观察者
type multiObserver []Observer

// Observers 合并多个观察者，nil 会被跳过
func Observers(list ...Observer) Observer {
	out := make(multiObserver, 0, len(list))
	for _, o := range list {
		if o != nil {
			out = append(out, o)
		}
	}
	switch len(out) {
	case 0:
		return NopObserver{}
	case 1:
		return out[0]
	}
	return out
}

func (m multiObserver) OnStatus(message string) {
	for _, o := range m {
		o.OnStatus(message)
	}
}

func (m multiObserver) OnImageStatus(sceneIndex int, loading bool) {
	for _, o := range m {
		o.OnImageStatus(sceneIndex, loading)
	}
}

func (m multiObserver) OnStage(stage entity.Stage, progress int) {
	for _, o := range m {
		if so, ok := o.(StageObserver); ok {
			so.OnStage(stage, progress)
		}
	}
}

// syncObserver 并发插图时串行化回调
type syncObserver struct {
	mu    sync.Mutex
	inner Observer
}

func (s *syncObserver) OnStatus(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inner.OnStatus(message)
}

func (s *syncObserver) OnImageStatus(sceneIndex int, loading bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inner.OnImageStatus(sceneIndex, loading)
}

func (s *syncObserver) OnStage(stage entity.Stage, progress int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if so, ok := s.inner.(StageObserver); ok {
		so.OnStage(stage, progress)
	}
}

// EventKind 进度事件类型
type EventKind string

const (
	EventStatus      EventKind = "status"
	EventImageStatus EventKind = "image_status"
	EventStage       EventKind = "stage"
)

// Event 通道观察者投递的事件
type Event struct {
	Kind       EventKind    `json:"kind"`
	Message    string       `json:"message,omitempty"`
	SceneIndex int          `json:"scene_index"`
	Loading    bool         `json:"loading"`
	Stage      entity.Stage `json:"stage,omitempty"`
	Progress   int          `json:"progress"`
	Time       time.Time    `json:"time"`
}

// ChannelObserver 把通知写入通道，由宿主（SSE 等）消费。
// 生产方结束后调用 Close；消费方放弃读取时调用 Detach，之后的通知被丢弃而不阻塞生成。
type ChannelObserver struct {
	events    chan Event
	detached  chan struct{}
	closeOnce sync.Once
	detachOne sync.Once
	mu        sync.RWMutex
	closed    bool
}

func NewChannelObserver(buffer int) *ChannelObserver {
	return &ChannelObserver{
		events:   make(chan Event, buffer),
		detached: make(chan struct{}),
	}
}

// Events 事件通道，Close 后关闭
func (c *ChannelObserver) Events() <-chan Event {
	return c.events
}

func (c *ChannelObserver) OnStatus(message string) {
	c.send(Event{Kind: EventStatus, Message: message})
}

func (c *ChannelObserver) OnImageStatus(sceneIndex int, loading bool) {
	c.send(Event{Kind: EventImageStatus, SceneIndex: sceneIndex, Loading: loading})
}

func (c *ChannelObserver) OnStage(stage entity.Stage, progress int) {
	c.send(Event{Kind: EventStage, Stage: stage, Progress: progress})
}

// Close 由生产方调用
func (c *ChannelObserver) Close() {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		close(c.events)
		c.mu.Unlock()
	})
}

// Detach 由消费方调用
func (c *ChannelObserver) Detach() {
	c.detachOne.Do(func() { close(c.detached) })
}

func (c *ChannelObserver) send(ev Event) {
	ev.Time = time.Now().UTC()
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return
	}
	select {
	case c.events <- ev:
	case <-c.detached:
	}
}
