package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLegalState(t *testing.T) {
	legal := []struct {
		approval ApprovalStatus
		status   RunStatus
	}{
		{ApprovalPending, StatusPending},
		{ApprovalApproved, StatusPending},
		{ApprovalApproved, StatusActive},
		{ApprovalApproved, StatusPaused},
		{ApprovalApproved, StatusCompleted},
		{ApprovalRejected, StatusRejected},
	}
	for _, tt := range legal {
		assert.True(t, LegalState(tt.approval, tt.status), "(%s, %s) should be legal", tt.approval, tt.status)
	}

	illegal := []struct {
		approval ApprovalStatus
		status   RunStatus
	}{
		{ApprovalPending, StatusActive},
		{ApprovalPending, StatusPaused},
		{ApprovalPending, StatusCompleted},
		{ApprovalPending, StatusRejected},
		{ApprovalApproved, StatusRejected},
		{ApprovalRejected, StatusActive},
		{ApprovalRejected, StatusPending},
		{"unknown", StatusActive},
		{ApprovalApproved, "unknown"},
	}
	for _, tt := range illegal {
		assert.False(t, LegalState(tt.approval, tt.status), "(%s, %s) should be illegal", tt.approval, tt.status)
	}
}

func TestAuctionBiddable(t *testing.T) {
	auction := Auction{
		StartingPrice:    8500,
		CurrentBid:       8500,
		MinimumIncrement: 200,
		StartTime:        time.Now().Add(-time.Hour),
		EndTime:          time.Now().Add(time.Hour),
	}

	// 只有 approved + active 可以出價
	for _, approval := range []ApprovalStatus{ApprovalPending, ApprovalApproved, ApprovalRejected} {
		for _, status := range []RunStatus{StatusPending, StatusActive, StatusPaused, StatusCompleted, StatusRejected} {
			auction.ApprovalStatus = approval
			auction.Status = status
			want := approval == ApprovalApproved && status == StatusActive
			assert.Equal(t, want, auction.Biddable(), "(%s, %s)", approval, status)
		}
	}
}

func TestMinimumNextBid(t *testing.T) {
	auction := Auction{CurrentBid: 8500, MinimumIncrement: 200}
	assert.Equal(t, int64(8700), auction.MinimumNextBid())

	// 尚無出價時 current_bid 就是起標價
	auction = Auction{StartingPrice: 1000, CurrentBid: 1000, MinimumIncrement: 50}
	assert.Equal(t, int64(1050), auction.MinimumNextBid())
}
