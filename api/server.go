package api

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"github.com/redis/go-redis/v9"

	"github.com/BigDataMasons-AI/Crown-Auctions-New-sub000/adapters/paypal"
	"github.com/BigDataMasons-AI/Crown-Auctions-New-sub000/adapters/sse"
	"github.com/BigDataMasons-AI/Crown-Auctions-New-sub000/adapters/stream"
	"github.com/BigDataMasons-AI/Crown-Auctions-New-sub000/bidding"
	"github.com/BigDataMasons-AI/Crown-Auctions-New-sub000/deposit"
	"github.com/BigDataMasons-AI/Crown-Auctions-New-sub000/events"
	"github.com/BigDataMasons-AI/Crown-Auctions-New-sub000/lifecycle"
	"github.com/BigDataMasons-AI/Crown-Auctions-New-sub000/storage"
	storagePostgres "github.com/BigDataMasons-AI/Crown-Auctions-New-sub000/storage/postgres"
)

// ServerImpl 聚合全部的引擎與基礎設施，生命週期由 Start/Close 控制。
type ServerImpl struct {
	store       storage.Store
	controller  *lifecycle.Controller
	engine      *bidding.Engine
	ledger      *deposit.Ledger
	sweeper     *lifecycle.Sweeper
	producer    stream.IProducer[events.AuctionEvent]
	consumer    stream.IConsumer[sse.PublishRequest[events.AuctionEvent]]
	sseManager  sse.IConnectionManager[events.AuctionEvent]
	redisClient *redis.Client
	htmlChecker *bluemonday.Policy

	config ServerConfig
}

func NewServer(config ServerConfig) (*ServerImpl, error) {
	const op = "NewServer"

	// 初始化資料庫連線
	dsn := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable&search_path=%s",
		config.DB.User, config.DB.Password, config.DB.Host, config.DB.Port, config.DB.Database, config.DB.Schema)
	db, err := storagePostgres.Open(dsn, config.DB.Schema)
	if err != nil {
		return nil, fmt.Errorf("[%s] Fail to connect to database, err=%w", op, err)
	}
	store := storagePostgres.New(db)

	// 初始化Redis連線
	redisClient := redis.NewClient(&redis.Options{
		Addr:     config.Redis.Addr,
		Password: config.Redis.Password,
		DB:       config.Redis.DB,
	})

	// 初始化事件producer，引擎在提交後把事件寫進Redis Stream
	producer, err := stream.NewProducer[events.AuctionEvent](redisClient, config.Redis.StreamKeys.Events)
	if err != nil {
		return nil, fmt.Errorf("[%s] Fail to create event producer, err=%w", op, err)
	}

	// 初始化consumer，把Stream上的事件轉成SSE發布請求
	consumer, err := stream.NewConsumer(
		redisClient,
		config.Redis.StreamKeys.Events,
		stream.WithConsumerDecodeFunc(func(m map[string]any) (sse.PublishRequest[events.AuctionEvent], error) {
			event, err := stream.DecodeMessage[events.AuctionEvent](m)
			if err != nil {
				return sse.PublishRequest[events.AuctionEvent]{}, fmt.Errorf("fail to decode auction event, err=%w", err)
			}
			// 拍賣事件以拍賣ID為頻道，保證金裁決以使用者ID為頻道
			channel := event.AuctionID.String()
			if event.Kind == events.KindDepositDecided {
				channel = "user:" + event.UserID.String()
			}
			return sse.PublishRequest[events.AuctionEvent]{
				Channel: channel,
				Message: event,
			}, nil
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("[%s] Fail to create event consumer, err=%w", op, err)
	}

	// 初始化SSE管理器
	sseManager, err := sse.NewConnectionManager[events.AuctionEvent](
		sse.WithLogger[events.AuctionEvent](slog.Default()),
		sse.WithSubscriber(consumer),
	)
	if err != nil {
		return nil, fmt.Errorf("[%s] Fail to create sse connection manager, err=%w", op, err)
	}

	// 初始化金流客戶端
	paypalClient := paypal.NewClient(
		config.PayPal.BaseURL,
		config.PayPal.ClientID,
		config.PayPal.ClientSecret,
		config.PayPal.Timeout,
	)

	// 初始化引擎
	limiter := bidding.NewRedisRateLimiter(redisClient, config.Redis.KeyPrefix, config.RateLimit.MaxBids, config.RateLimit.Window)
	controller := lifecycle.NewController(store, producer)
	engine := bidding.NewEngine(store, limiter, producer)
	ledger := deposit.NewLedger(store, paypalClient, config.Deposit.Amount, config.Deposit.Currency,
		deposit.WithLedgerNotifier(&refundDecisionNotifier{producer: producer}))

	// 初始化排程掃描，多實例部署時由分散式鎖選出單一執行者
	sweepLock := stream.NewAutoRenewMutex(redisClient, config.Redis.KeyPrefix+"lifecycle:sweep:lock")
	sweeper := lifecycle.NewSweeper(controller, config.Sweep.Interval, lifecycle.WithSweeperLocker(sweepLock))

	return &ServerImpl{
		store:       store,
		controller:  controller,
		engine:      engine,
		ledger:      ledger,
		sweeper:     sweeper,
		producer:    producer,
		consumer:    consumer,
		sseManager:  sseManager,
		redisClient: redisClient,
		htmlChecker: bluemonday.UGCPolicy(),
		config:      config,
	}, nil
}

// refundDecisionNotifier 把退款裁決當作事件發布，循既有的扇出路徑送達使用者。
// 發布失敗由帳本記錄，不回滾已提交的狀態轉換。
type refundDecisionNotifier struct {
	producer stream.IProducer[events.AuctionEvent]
}

func (n *refundDecisionNotifier) NotifyRefundDecision(_ context.Context, userID uuid.UUID, approved bool, detail string) error {
	return n.producer.Publish(events.AuctionEvent{
		Kind:       events.KindDepositDecided,
		UserID:     userID,
		Approved:   approved,
		Detail:     detail,
		OccurredAt: time.Now(),
	})
}

func (impl *ServerImpl) Start() {
	// 啟動producer
	impl.producer.Start()
	// 啟動consumer
	impl.consumer.Start()
	// 啟動sse connection manager
	impl.sseManager.Start()
	// 啟動排程掃描
	impl.sweeper.Start()
}

func (impl *ServerImpl) Close() {
	// 停止排程掃描
	impl.sweeper.Close()
	// 關閉producer，送完緩衝中的事件
	impl.producer.Close()
	// 關閉consumer
	impl.consumer.Close()
	// 關閉sse connection manager
	impl.sseManager.Done()
	// 關閉Redis連線
	if err := impl.redisClient.Close(); err != nil {
		slog.Warn("Fail to close redis client", slog.Any("error", err))
	}
}
