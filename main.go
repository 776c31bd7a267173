package main

import (
	"time"

	"github.com/cppla/threadline/config"
	"github.com/cppla/threadline/events"
	"github.com/cppla/threadline/repository"
	"github.com/cppla/threadline/routes"
	"github.com/cppla/threadline/services"
	"github.com/cppla/threadline/utils"
)

func main() {
	cfg := config.Load()

	// Initialize logger early
	if err := utils.InitLogger(cfg); err != nil {
		panic(err)
	}
	defer func() { _ = utils.Logger.Sync() }()

	db, err := config.InitDatabase(cfg, config.Models...)
	if err != nil {
		utils.Sugar.Fatalw("database init failed", "driver", cfg.DBDriver, "error", err)
	}
	repo := repository.NewGormRepository(db)

	var shutdown []func()
	var ledgerOpts []services.LedgerOption
	if len(cfg.KafkaBrokers) > 0 {
		pub := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaReactionTopic, cfg.KafkaAsync, utils.Sugar.Named("kafka"))
		ledgerOpts = append(ledgerOpts, services.WithEventPublisher(pub))
		shutdown = append(shutdown, func() {
			if err := pub.Close(); err != nil {
				utils.Sugar.Warnw("kafka writer close failed", "error", err)
			}
		})
		utils.Sugar.Infow("publishing reaction events", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaReactionTopic, "async", cfg.KafkaAsync)
	}

	rc := utils.NewRedis(cfg)
	if rc != nil {
		shutdown = append(shutdown, func() { _ = rc.Close() })
	}
	cache := utils.NewCache(rc, time.Duration(cfg.CacheTTLSec)*time.Second, utils.Sugar.Named("cache"))

	log := utils.Sugar
	counters := services.NewCounterMaintainer(repo, log.Named("counters"))
	r := routes.SetupRouter(routes.Deps{
		Config:    cfg,
		Repo:      repo,
		Ledger:    services.NewLedger(repo, counters, log.Named("ledger"), ledgerOpts...),
		Counters:  counters,
		Assembler: services.NewAssembler(repo, log.Named("assembler")),
		Trending:  services.NewTrendingEstimator(repo, log.Named("trending"), nil),
		Publisher: services.NewPublisher(repo, counters, log.Named("publisher"), nil),
		Cache:     cache,
	})

	utils.Sugar.Infof("Starting server on port %s (graceful)", cfg.AppPort)
	if err := utils.GraceServer(":"+cfg.AppPort, r, shutdown...); err != nil {
		utils.Sugar.Fatalf("server stopped with error: %v", err)
	}
}
