package bootstrap

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/krobus00/futures-feed-service/internal/config"
	"github.com/krobus00/futures-feed-service/internal/conn"
	"github.com/krobus00/futures-feed-service/internal/constant"
	"github.com/krobus00/futures-feed-service/internal/dispatch"
	"github.com/krobus00/futures-feed-service/internal/infrastructure"
	"github.com/krobus00/futures-feed-service/internal/publisher"
	"github.com/krobus00/futures-feed-service/internal/queue"
	"github.com/krobus00/futures-feed-service/internal/repository"
	"github.com/krobus00/futures-feed-service/internal/service/collector"
	"github.com/krobus00/futures-feed-service/internal/subscription"
	"github.com/krobus00/futures-feed-service/internal/symbols"
	"github.com/krobus00/futures-feed-service/internal/util"
)

func StartBinaryCollector(cmd *cobra.Command, args []string) {
	startCollector(collector.VariantBinary)
}

func StartPluginCollector(cmd *cobra.Command, args []string) {
	startCollector(collector.VariantPlugin)
}

func startCollector(variant collector.Variant) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg := config.Env.Collector
	instanceID := uuid.NewString()
	logrus.WithFields(logrus.Fields{
		"instance_id": instanceID,
		"variant":     string(variant),
	}).Info("starting collector")

	db, err := infrastructure.NewPostgresConnection(ctx, config.Env.Database["market_data"])
	util.ContinueOrFatal(err)
	infrastructure.StartPostgresHealthCheck(ctx, db, config.Env.Database["market_data"].PingInterval)

	controlQueue, err := queue.NewRedisControlQueue(config.Env.Redis["control_queue"].CacheDSN, constant.SubscriptionQueueKey)
	util.ContinueOrFatal(err)
	util.ContinueOrFatal(controlQueue.Ping(ctx))

	resolver := symbols.NewResolver(cfg.DefaultExchange)
	dispatcher := dispatch.New(resolver)

	var (
		dialer  conn.Dialer
		addr    string
		encoder subscription.FrameEncoder
	)
	switch variant {
	case collector.VariantBinary:
		addr = fmt.Sprintf("%s:%d", cfg.Host, cfg.BinaryPort)
		dialer = conn.TCPDialer{}
		encoder = subscription.BinaryFrameEncoder{}
	default:
		encoder = subscription.TextFrameEncoder{}
		if cfg.Transport == "ws" {
			addr = fmt.Sprintf("ws://%s:%d", cfg.Host, cfg.PluginPort)
			dialer = conn.WebsocketDialer{}
		} else {
			addr = fmt.Sprintf("%s:%d", cfg.Host, cfg.PluginPort)
			dialer = conn.TCPDialer{}
		}
	}

	manager := conn.NewManager(conn.Config{
		Addr:            addr,
		ConnectAttempts: cfg.ConnectAttempts,
		ConnectBackoff:  cfg.ConnectBackoff,
	}, dialer)

	tickRepo := repository.NewTickRepository(db)
	level2Repo := repository.NewLevel2Repository(db, cfg.DepthRetention)
	symbolRepo := repository.NewSymbolRepository(db)

	subs := subscription.NewManager(subscription.Config{
		ReconcileInterval:   cfg.ReconcileInterval,
		MaxConsecutiveFails: cfg.MaxReconcileFailures,
	}, manager, encoder, controlQueue, resolver, symbolRepo)

	var (
		nc  *nats.Conn
		pub collector.EventPublisher
	)
	if cfg.PublishEvents {
		var js nats.JetStreamContext
		nc, js, err = infrastructure.NewJetstream()
		util.ContinueOrFatal(err)

		mdPublisher := publisher.New(js)
		util.ContinueOrFatal(mdPublisher.StreamInit(ctx))
		pub = mdPublisher
	}

	svc := collector.New(variant, manager, dispatcher, subs, tickRepo, level2Repo, pub, resolver.ParseList(cfg.Symbols), cfg.MaxFrameSize)

	statusServer := infrastructure.NewStatusServer(instanceID, svc)

	fatal := make(chan error, 3)
	go func() {
		fatal <- svc.Run(ctx)
	}()
	go func() {
		if err := subs.Run(ctx); err != nil {
			fatal <- err
		}
	}()
	go func() {
		if err := statusServer.Start(); err != nil {
			fatal <- err
		}
	}()

	wait := gracefulShutdown(ctx, config.Env.GracefulShutdownTimeout, fatal, map[string]operation{
		"upstream connection": func(ctx context.Context) error {
			cancel()
			return manager.Disconnect()
		},
		"database": func(ctx context.Context) error {
			return db.Close()
		},
		"control queue": func(ctx context.Context) error {
			return controlQueue.Close()
		},
		"nats connection": func(ctx context.Context) error {
			return infrastructure.CloseJetstream(nc)
		},
		"status server": func(ctx context.Context) error {
			return statusServer.Shutdown(ctx)
		},
	})

	<-wait
}
