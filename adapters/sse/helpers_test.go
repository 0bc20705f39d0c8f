package sse_test

import (
	"io"
	"log"

	"github.com/BigDataMasons-AI/Crown-Auctions-New-sub000/adapters/sse"
)

func init() {
	// 將日誌輸出重定向到io.Discard
	log.SetOutput(io.Discard)
}

// Message 表示一個 SSE 訊息，包含資料字段。
type Message struct {
	Data string `json:"data"`
}

// fakeSubscriber 以固定的channel模擬上游訊息來源。
type fakeSubscriber struct {
	upstream chan sse.PublishRequest[Message]
}

func newFakeSubscriber() *fakeSubscriber {
	return &fakeSubscriber{upstream: make(chan sse.PublishRequest[Message], 16)}
}

func (f *fakeSubscriber) Subscribe() <-chan sse.PublishRequest[Message] {
	return f.upstream
}
