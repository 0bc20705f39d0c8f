package lifecycle

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Locker 是排程掃描用的分散式領導鎖。
// 多實例部署時同一時間只有拿到鎖的實例會執行掃描。
type Locker interface {
	Lock(ctx context.Context) (context.Context, error)
	Unlock() (bool, error)
}

// Sweeper 以固定間隔執行 AdvanceSchedule 的背景工作者。
type Sweeper struct {
	controller *Controller
	locker     Locker
	interval   time.Duration
	logger     *slog.Logger
	now        func() time.Time

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type SweeperOption func(*Sweeper)

// WithSweeperLogger 設置日誌記錄器
func WithSweeperLogger(logger *slog.Logger) SweeperOption {
	return func(s *Sweeper) {
		s.logger = logger
	}
}

// WithSweeperLocker 設置領導鎖，未設置時每個實例都會自行掃描。
func WithSweeperLocker(locker Locker) SweeperOption {
	return func(s *Sweeper) {
		s.locker = locker
	}
}

// WithSweeperClock 設置時間來源（測試用）
func WithSweeperClock(now func() time.Time) SweeperOption {
	return func(s *Sweeper) {
		s.now = now
	}
}

// NewSweeper 建立排程掃描工作者，interval 為掃描間隔。
func NewSweeper(controller *Controller, interval time.Duration, opts ...SweeperOption) *Sweeper {
	sweeper := &Sweeper{
		controller: controller,
		interval:   interval,
		logger:     slog.Default().With(slog.String("caller", "LifecycleSweeper")),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(sweeper)
	}
	return sweeper
}

// Start 啟動背景掃描，直到 Close 被呼叫為止。
func (s *Sweeper) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.sweep(ctx)
			}
		}
	}()
}

// sweep 執行一輪掃描。鎖被別的實例持有時直接跳過這一輪。
func (s *Sweeper) sweep(ctx context.Context) {
	runCtx := ctx
	if s.locker != nil {
		lockCtx, err := s.locker.Lock(ctx)
		if err != nil {
			s.logger.Debug("Skip sweep, lock held elsewhere", slog.Any("error", err))
			return
		}
		defer func() {
			if _, err := s.locker.Unlock(); err != nil {
				s.logger.Warn("Fail to release sweep lock", slog.Any("error", err))
			}
		}()
		runCtx = lockCtx
	}
	if _, err := s.controller.AdvanceSchedule(runCtx, s.now()); err != nil {
		s.logger.Error("Fail to advance schedule", slog.Any("error", err))
	}
}

// Close 停止背景掃描並等待最後一輪結束。
func (s *Sweeper) Close() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}
