// Package app wires configuration into the store, queue, sender and
// services shared by the server and worker binaries.
package app

import (
	"context"
	"io"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/unclebandit/whatsapp-campaigns/internal/config"
	"github.com/unclebandit/whatsapp-campaigns/internal/db"
	"github.com/unclebandit/whatsapp-campaigns/internal/metrics"
	"github.com/unclebandit/whatsapp-campaigns/internal/phone"
	"github.com/unclebandit/whatsapp-campaigns/internal/queue"
	"github.com/unclebandit/whatsapp-campaigns/internal/repository"
	"github.com/unclebandit/whatsapp-campaigns/internal/repository/memory"
	"github.com/unclebandit/whatsapp-campaigns/internal/sender"
	"github.com/unclebandit/whatsapp-campaigns/internal/service"
)

type App struct {
	Config     *config.Config
	Store      repository.Store
	Queue      queue.Queue
	Scheduler  *service.TimerScheduler
	Campaigns  *service.CampaignService
	AutoReply  *service.AutoReplyService
	Reconciler *service.ReceiptReconciler
	Worker     *service.Worker

	conn   *sqlx.DB
	closer io.Closer
}

// New builds every dependency from cfg. A nil m disables metrics.
func New(ctx context.Context, cfg *config.Config, m *metrics.Metrics, log logrus.FieldLogger) (*App, error) {
	a := &App{Config: cfg, Scheduler: &service.TimerScheduler{}}

	switch cfg.StoreDriver {
	case config.StoreMemory:
		log.Warn("⚠️ Using in-memory store, data is lost on restart")
		a.Store = memory.New()
	default:
		conn, err := db.Connect(ctx, cfg.DSN(), log)
		if err != nil {
			return nil, err
		}
		a.conn = conn
		a.Store = repository.NewPostgresStore(conn)
	}

	if cfg.AMQPURL != "" {
		q, err := queue.NewAMQPQueue(cfg.AMQPURL, cfg.AMQPConsumers, log)
		if err != nil {
			a.Close()
			return nil, errors.Wrap(err, "connect to broker")
		}
		a.Queue, a.closer = q, q
	} else {
		q := queue.NewInMemoryQueue(log)
		a.Queue, a.closer = q, q
	}

	var s sender.MessageSender
	if cfg.SenderMode == config.SenderMock {
		log.WithField("success_rate", cfg.MockSuccessRate).Warn("⚠️ Using mock sender")
		s = sender.NewRandomSender(cfg.MockSuccessRate, time.Now().UnixNano())
	} else {
		s = sender.NewBridgeClient(cfg.EngineURL, cfg.EngineTimeout, log)
	}

	clock := service.SystemClock{}
	ledger := service.NewDeliveryLedger(a.Store, s, clock, cfg.SendInterval, m, log)
	engine := service.NewAutoReplyEngine(a.Store, s, a.Scheduler, clock, m, log)

	a.Campaigns = &service.CampaignService{
		Store:   a.Store,
		Ledger:  ledger,
		Sender:  s,
		Queue:   a.Queue,
		Clock:   clock,
		Metrics: m,
		Log:     log,
	}
	a.AutoReply = &service.AutoReplyService{Store: a.Store, Log: log}
	a.Reconciler = &service.ReceiptReconciler{
		Store:      a.Store,
		Ledger:     ledger,
		AutoReply:  engine,
		Normalizer: phone.NewNormalizer(cfg.PrefixSwaps...),
		Clock:      clock,
		Metrics:    m,
		Log:        log,
	}
	a.Worker = &service.Worker{Campaigns: a.Campaigns, Reconciler: a.Reconciler, Log: log}
	return a, nil
}

// InProcess reports whether queued jobs run inside this process.
func (a *App) InProcess() bool {
	_, ok := a.Queue.(*queue.InMemoryQueue)
	return ok
}

// Close stops the queue consumers and drains their in-flight jobs, then
// waits for deferred auto replies, which still need the store, and finally
// releases the database.
func (a *App) Close() error {
	var err error
	if a.closer != nil {
		err = a.closer.Close()
	}
	a.Scheduler.Wait()
	if a.conn != nil {
		if cerr := a.conn.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
