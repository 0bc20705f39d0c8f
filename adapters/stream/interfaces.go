package stream

import "context"

// IProducer 定義了把訊息寫入 stream 的操作介面。
type IProducer[T any] interface {
	Start()
	Publish(data T) error
	Close()
}

// IConsumer 定義了從 stream 讀取訊息的操作介面。
type IConsumer[T any] interface {
	Start()
	Subscribe() <-chan T
	Close()
}

// ILocker 定義了跨實例互斥鎖的操作介面。
type ILocker interface {
	Lock(ctx context.Context) (context.Context, error)
	Unlock() (bool, error)
	Valid() bool
}
