package sse

import (
	"sync"
)

// subscriberBuffer 是每個訂閱者通道的緩衝大小。
const subscriberBuffer = 16

// Channel 管理單一主題的訂閱者集合，把上游訊息散播給每一位訂閱者。
// 投遞是盡力而為的：讀得慢的訂閱者不會拖住上游，緩衝滿時該則訊息
// 對該訂閱者直接跳過，前端以重新抓取快照補齊缺漏。
type Channel[T any] struct {
	mu   sync.RWMutex
	subs map[<-chan T]chan T
}

// NewChannel 建立一個沒有任何訂閱者的主題。
func NewChannel[T any]() IChannel[T] {
	return &Channel[T]{
		subs: make(map[<-chan T]chan T),
	}
}

// Subscribe 配置一個帶緩衝的訂閱通道，回傳唯讀端給呼叫者。
func (c *Channel[T]) Subscribe() <-chan T {
	c.mu.Lock()
	defer c.mu.Unlock()
	ch := make(chan T, subscriberBuffer)
	c.subs[ch] = ch
	return ch
}

// Unsubscribe 移除指定的訂閱並關閉其通道；不認得的通道視為已取消。
func (c *Channel[T]) Unsubscribe(ch <-chan T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if sendCh, exists := c.subs[ch]; exists {
		delete(c.subs, ch)
		close(sendCh)
	}
}

// UnsubscribeAll 關閉所有訂閱通道並清空集合。
func (c *Channel[T]) UnsubscribeAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, sendCh := range c.subs {
		close(sendCh)
	}
	clear(c.subs)
}

// Broadcast 把訊息送往每個訂閱通道，緩衝已滿的訂閱者跳過這一則。
// close 只發生在寫鎖之下，持讀鎖送訊息不會撞到已關閉的通道。
func (c *Channel[T]) Broadcast(message T) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, sendCh := range c.subs {
		select {
		case sendCh <- message:
		default:
		}
	}
}

// IsIdle 判斷是否已無任何訂閱者。
func (c *Channel[T]) IsIdle() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.subs) == 0
}
