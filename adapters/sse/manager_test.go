package sse_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/BigDataMasons-AI/Crown-Auctions-New-sub000/adapters/sse"
)

func TestConnectionManager(t *testing.T) {
	defer goleak.VerifyNone(t)

	subscriber := newFakeSubscriber()
	cm, err := sse.NewConnectionManager[Message](sse.WithSubscriber[Message](subscriber))
	require.NoError(t, err)
	cm.Start()
	defer cm.Done()

	// 測試訂閱
	ch, err := cm.Subscribe("auction-1")
	require.NoError(t, err)
	require.NotNil(t, ch)

	// 上游訊息只送到對應的頻道
	msg := Message{Data: "new bid"}
	subscriber.upstream <- sse.PublishRequest[Message]{Channel: "auction-1", Message: msg}

	select {
	case received := <-ch:
		assert.Equal(t, msg, received)
	case <-time.After(time.Second):
		t.Fatal("did not receive message in time")
	}

	// 測試取消訂閱
	cm.Unsubscribe("auction-1", ch)
	_, ok := <-ch
	assert.False(t, ok, "channel should be closed")
}

func TestConnectionManager_RequiresSubscriber(t *testing.T) {
	_, err := sse.NewConnectionManager[Message]()
	assert.Error(t, err)
}

func TestConnectionManager_MessageForOtherChannelIsDropped(t *testing.T) {
	defer goleak.VerifyNone(t)

	subscriber := newFakeSubscriber()
	cm, err := sse.NewConnectionManager[Message](sse.WithSubscriber[Message](subscriber))
	require.NoError(t, err)
	cm.Start()
	defer cm.Done()

	ch, err := cm.Subscribe("auction-1")
	require.NoError(t, err)

	subscriber.upstream <- sse.PublishRequest[Message]{Channel: "auction-2", Message: Message{Data: "elsewhere"}}

	select {
	case received := <-ch:
		t.Fatalf("unexpected message: %v", received)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestConnectionManager_DoneClosesSubscriptions(t *testing.T) {
	defer goleak.VerifyNone(t)

	subscriber := newFakeSubscriber()
	cm, err := sse.NewConnectionManager[Message](sse.WithSubscriber[Message](subscriber))
	require.NoError(t, err)
	cm.Start()

	ch, err := cm.Subscribe("auction-1")
	require.NoError(t, err)

	cm.Done()
	_, ok := <-ch
	assert.False(t, ok, "channel should be closed after Done")

	// Done之後不再接受新的訂閱
	_, err = cm.Subscribe("auction-1")
	assert.Error(t, err)
}
