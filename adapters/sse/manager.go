package sse

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

// connectionManager 管理多個頻道的訂閱與廣播。
// 上游訊息來自 ISubscriber（通常是跨節點的 Redis Stream 消費者），
// 讓多個服務實例能把同一筆已提交變更送到各自的訂閱端。
type connectionManager[T any] struct {
	ctx    context.Context
	cancel context.CancelFunc
	logger *slog.Logger

	mu     sync.RWMutex
	wg     sync.WaitGroup
	active bool

	subscriber ISubscriber[T]
	channels   map[string]IChannel[T]
}

type managerOptions[T any] struct {
	logger     *slog.Logger
	subscriber ISubscriber[T]
}

type ManagerOption[T any] func(*managerOptions[T])

// WithLogger 設置日誌記錄器
func WithLogger[T any](logger *slog.Logger) ManagerOption[T] {
	return func(o *managerOptions[T]) {
		o.logger = logger
	}
}

// WithSubscriber 設置上游訊息來源
func WithSubscriber[T any](subscriber ISubscriber[T]) ManagerOption[T] {
	return func(o *managerOptions[T]) {
		o.subscriber = subscriber
	}
}

// NewConnectionManager 建立一個新的連線管理器。
func NewConnectionManager[T any](opts ...ManagerOption[T]) (IConnectionManager[T], error) {
	options := managerOptions[T]{
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(&options)
	}
	if options.subscriber == nil {
		return nil, errors.New("subscriber is required")
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &connectionManager[T]{
		ctx:        ctx,
		cancel:     cancel,
		logger:     options.logger.With(slog.String("caller", "ConnectionManager")),
		subscriber: options.subscriber,
		channels:   make(map[string]IChannel[T]),
		active:     true,
	}, nil
}

// Start 啟動連線管理器，開始處理訊息的接收與廣播。
func (cm *connectionManager[T]) Start() {
	cm.wg.Add(1)
	go func() {
		defer cm.wg.Done()
		upstream := cm.subscriber.Subscribe()
		for {
			select {
			case <-cm.ctx.Done():
				return
			case msg, ok := <-upstream:
				if !ok {
					return
				}
				cm.mu.RLock()
				if channel, exists := cm.channels[msg.Channel]; exists {
					channel.Broadcast(msg.Message)
				}
				cm.mu.RUnlock()
			}
		}
	}()
}

// Done 停止連線管理器的運作。
func (cm *connectionManager[T]) Done() {
	cm.mu.Lock()
	if !cm.active {
		cm.mu.Unlock()
		return
	}
	cm.active = false
	cm.cancel()
	cm.mu.Unlock()

	cm.wg.Wait()

	cm.mu.Lock()
	defer cm.mu.Unlock()
	for _, channel := range cm.channels {
		channel.UnsubscribeAll()
	}
	clear(cm.channels)
}

// Subscribe 訂閱指定的頻道。
func (cm *connectionManager[T]) Subscribe(channelName string) (<-chan T, error) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if !cm.active {
		return nil, context.Canceled
	}

	c, ok := cm.channels[channelName]
	if !ok {
		c = NewChannel[T]()
		cm.channels[channelName] = c
	}
	return c.Subscribe(), nil
}

// Unsubscribe 取消訂閱指定的頻道。
func (cm *connectionManager[T]) Unsubscribe(channelName string, ch <-chan T) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	c, ok := cm.channels[channelName]
	if !ok {
		return
	}
	c.Unsubscribe(ch)
	if c.IsIdle() {
		delete(cm.channels, channelName)
	}
}
