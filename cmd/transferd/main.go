package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/transferd-network/transferd/internal/config"
	"github.com/transferd-network/transferd/internal/core/application"
	redisqueue "github.com/transferd-network/transferd/internal/infrastructure/queue/redis"
	postgresdb "github.com/transferd-network/transferd/internal/infrastructure/storage/db/pg"
	httpinterface "github.com/transferd-network/transferd/internal/interfaces/http"
	"github.com/transferd-network/transferd/pkg/ledger"
	"github.com/transferd-network/transferd/pkg/nodepool"
	"github.com/transferd-network/transferd/pkg/stats"
)

func main() {
	if err := config.InitConfig(); err != nil {
		log.WithError(err).Fatal("invalid config")
	}
	log.SetLevel(log.Level(config.GetInt(config.LogLevelKey)))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if config.GetBool(config.EnableProfilerKey) {
		stats.EnableRuntimeStatistics(
			ctx,
			config.GetDuration(config.StatsIntervalKey),
			config.GetString(config.StatsDumpPathKey),
		)
	}

	repoManager, err := postgresdb.NewService(postgresdb.DbConfig{
		DbUser:             config.GetString(config.PgUserKey),
		DbPassword:         config.GetString(config.PgPasswordKey),
		DbHost:             config.GetString(config.PgHostKey),
		DbPort:             config.GetInt(config.PgPortKey),
		DbName:             config.GetString(config.PgNameKey),
		MigrationSourceURL: config.GetString(config.PgMigrationSource),
	})
	if err != nil {
		log.WithError(err).Fatal("error while connecting to db")
	}
	defer repoManager.Close()

	redisClient := redis.NewClient(&redis.Options{
		Addr:     config.GetString(config.RedisAddrKey),
		Password: config.GetString(config.RedisPasswordKey),
	})
	defer redisClient.Close()

	minNodes, maxNodes := config.GetInt(config.MinNodesKey), config.GetInt(config.MaxNodesKey)
	csp := httpinterface.NewCSPBuilder()

	ledgerHTTP, err := nodepool.NewRegistry(nodepool.RegistryOpts{
		MinCount:   minNodes,
		MaxCount:   maxNodes,
		Endpoints:  config.GetStringSlice(config.LedgerHTTPNodesKey),
		OnRegister: csp.AllowOrigin,
	})
	if err != nil {
		log.WithError(err).Fatal("error while seeding ledger node pool")
	}
	appHTTP, err := nodepool.NewRegistry(nodepool.RegistryOpts{
		MinCount:   minNodes,
		MaxCount:   maxNodes,
		Endpoints:  config.GetStringSlice(config.AppHTTPNodesKey),
		OnRegister: csp.AllowOrigin,
	})
	if err != nil {
		log.WithError(err).Fatal("error while seeding app node pool")
	}
	ledgerWS, err := nodepool.NewWSPool(nodepool.WSPoolOpts{
		MinCount:  minNodes,
		MaxCount:  maxNodes,
		Endpoints: config.GetStringSlice(config.LedgerWSNodesKey),
	})
	if err != nil {
		log.WithError(err).Fatal("error while seeding ledger websocket pool")
	}

	queue, err := redisqueue.NewQueueService(redisqueue.QueueServiceOpts{
		Client:    redisClient,
		StreamKey: config.GetString(config.StreamKeyKey),
	})
	if err != nil {
		log.WithError(err).Fatal("error while setting up outcome queue")
	}

	consumer, err := redisqueue.NewConsumer(redisqueue.ConsumerOpts{
		Client:         redisClient,
		StreamKey:      config.GetString(config.StreamKeyKey),
		BatchSize:      config.GetInt(config.StreamBatchSizeKey),
		Ledger:         ledger.NewPooledClient(ledgerHTTP, nodepool.NewRandomSelector()),
		Repo:           repoManager.TransactionRepository(),
		LookupTimeout:  config.GetDuration(config.BlockLookupTimeoutKey),
		PersistTimeout: config.GetDuration(config.PersistTimeoutKey),
	})
	if err != nil {
		log.WithError(err).Fatal("error while setting up outcome consumer")
	}
	if err := consumer.Start(); err != nil {
		log.WithError(err).Fatal("error while starting outcome consumer")
	}
	defer consumer.Stop()

	wallets := application.NewWalletService(application.WalletServiceOpts{
		Repo:               repoManager,
		PBKDF2Iterations:   config.GetInt(config.PBKDF2IterationsKey),
		BaseDerivationPath: config.GetString(config.BaseDerivationPathKey),
	})
	transfers := application.NewTransferService(application.TransferServiceOpts{
		Repo:               repoManager,
		Queue:              queue,
		Wallets:            wallets,
		LedgerHTTP:         ledgerHTTP,
		LedgerWS:           ledgerWS,
		ChainID:            config.GetString(config.ChainIDKey),
		HRP:                config.GetString(config.HRPKey),
		BaseDerivationPath: config.GetString(config.BaseDerivationPathKey),
		ConfirmTimeout:     config.GetDuration(config.ConfirmTimeoutKey),
		PollInterval:       config.GetDuration(config.PollIntervalKey),
		MaxBroadcastAttempts: config.GetInt(
			config.MaxBroadcastAttemptsKey,
		),
	})
	nodes := application.NewNodeService(application.NodeServiceOpts{
		LedgerHTTP: ledgerHTTP,
		AppHTTP:    appHTTP,
		LedgerWS:   ledgerWS,
		Authorizer: httpinterface.NewTokenAuthorizer(
			config.GetString(config.AdminTokenKey),
		),
	})

	server := httpinterface.NewServer(httpinterface.ServerOpts{
		Addr:      config.GetString(config.ListenAddrKey),
		Transfers: transfers,
		Nodes:     nodes,
		CSP:       csp,
	})
	go func() {
		if err := server.Start(); err != nil {
			log.WithError(err).Fatal("error while serving json interface")
		}
	}()

	log.Info("daemon started")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)
	<-sigChan

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(
		context.Background(), 10*time.Second,
	)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("unable to shut down json interface cleanly")
	}

	log.Debug("exiting")
}
