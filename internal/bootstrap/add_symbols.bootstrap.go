package bootstrap

import (
	"context"
	"errors"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/krobus00/futures-feed-service/internal/config"
	"github.com/krobus00/futures-feed-service/internal/constant"
	"github.com/krobus00/futures-feed-service/internal/entity"
	"github.com/krobus00/futures-feed-service/internal/infrastructure"
	"github.com/krobus00/futures-feed-service/internal/queue"
	"github.com/krobus00/futures-feed-service/internal/repository"
	"github.com/krobus00/futures-feed-service/internal/symbols"
	"github.com/krobus00/futures-feed-service/internal/util"
)

// StartAddSymbols marks symbols active and queues subscription requests
// for the running collectors to pick up.
func StartAddSymbols(cmd *cobra.Command, args []string) {
	symbolList, _ := cmd.Flags().GetString("symbols")
	if strings.TrimSpace(symbolList) == "" {
		util.ContinueOrFatal(errors.New("--symbols is required, e.g. --symbols GCQ5,ESU5:CME"))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := infrastructure.NewPostgresConnection(ctx, config.Env.Database["market_data"])
	util.ContinueOrFatal(err)
	defer db.Close()

	controlQueue, err := queue.NewRedisControlQueue(config.Env.Redis["control_queue"].CacheDSN, constant.SubscriptionQueueKey)
	util.ContinueOrFatal(err)
	defer controlQueue.Close()

	resolver := symbols.NewResolver(config.Env.Collector.DefaultExchange)
	symbolRepo := repository.NewSymbolRepository(db)

	added := 0
	for _, sub := range resolver.ParseList([]string{symbolList}) {
		err := symbolRepo.Upsert(ctx, entity.Symbol{Symbol: sub.Symbol, Exchange: sub.Exchange, Active: true})
		if err != nil {
			logrus.Errorf("upsert symbol %s: %v", sub.Key(), err)
			continue
		}

		err = controlQueue.Push(ctx, entity.SubscriptionRequest{Symbol: sub.Symbol, Exchange: sub.Exchange})
		if err != nil {
			logrus.Errorf("queue subscription %s: %v", sub.Key(), err)
			continue
		}

		logrus.WithFields(logrus.Fields{
			"symbol":   sub.Symbol,
			"exchange": sub.Exchange,
		}).Info("symbol queued")
		added++
	}

	logrus.Infof("queued %d symbols", added)
}
