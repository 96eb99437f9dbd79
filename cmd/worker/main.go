package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/ariefcatur/go-retail-orders/internal/catalog"
	"github.com/ariefcatur/go-retail-orders/internal/config"
	kafkax "github.com/ariefcatur/go-retail-orders/internal/kafka"
	"github.com/ariefcatur/go-retail-orders/internal/logx"
	"github.com/ariefcatur/go-retail-orders/internal/mail"
	"github.com/ariefcatur/go-retail-orders/internal/postgres"
	"github.com/ariefcatur/go-retail-orders/internal/pricelist"
	"github.com/ariefcatur/go-retail-orders/internal/redisx"
	"github.com/ariefcatur/go-retail-orders/internal/tasks"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	log := logx.New(logx.ForEnvironment(cfg.Env, cfg.LogLevel, cfg.LogFormat)).With(zap.String("service", cfg.WorkerGroup))
	defer func() { _ = log.Sync() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal("db connect", zap.Error(err))
	}
	defer db.Close()

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	var mailer mail.Mailer = mail.LogMailer{Log: log.Named("mail")}
	if cfg.SMTPHost != "" {
		mailer = mail.NewSMTPMailer(mail.SMTPConfig{
			Host: cfg.SMTPHost, Port: cfg.SMTPPort, User: cfg.SMTPUser, Password: cfg.SMTPPassword, From: cfg.EmailFrom,
		})
	}

	runner := &tasks.Runner{
		Importer: pricelist.NewImporter(&catalog.Repo{DB: db},
			pricelist.NewHTTPFetcher(cfg.ImportFetchTimeout, cfg.ImportMaxBytes), log.Named("importer")),
		Mailer:      mailer,
		Status:      tasks.NewStatusStore(rdb, cfg.TaskStatusTTL),
		Redis:       rdb,
		ServiceName: cfg.WorkerGroup,
		Log:         log.Named("tasks"),
	}

	// Consumers, one per task topic
	var wg sync.WaitGroup
	for _, topic := range []string{tasks.TopicImport, tasks.TopicEmail} {
		cons := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.WorkerGroup, topic, cfg.WorkerCount, log.Named("kafka.consumer"))
		wg.Add(1)
		go func(topic string) {
			defer wg.Done()
			log.Info("consumer started", zap.String("topic", topic), zap.Int("workers", cfg.WorkerCount))
			if err := cons.Start(ctx, runner.Handle); err != nil {
				log.Error("consumer exit", zap.String("topic", topic), zap.Error(err))
				cancel()
			}
		}(topic)
	}

	// graceful shutdown
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
	case <-ctx.Done():
	}
	log.Info("shutting down consumers")
	cancel()
	wg.Wait()
}
