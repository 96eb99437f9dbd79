package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ariefcatur/go-retail-orders/internal/catalog"
	"github.com/ariefcatur/go-retail-orders/internal/config"
	"github.com/ariefcatur/go-retail-orders/internal/httpx"
	kafkax "github.com/ariefcatur/go-retail-orders/internal/kafka"
	"github.com/ariefcatur/go-retail-orders/internal/logx"
	"github.com/ariefcatur/go-retail-orders/internal/notify"
	"github.com/ariefcatur/go-retail-orders/internal/orders"
	"github.com/ariefcatur/go-retail-orders/internal/postgres"
	"github.com/ariefcatur/go-retail-orders/internal/redisx"
	"github.com/ariefcatur/go-retail-orders/internal/tasks"
	"github.com/ariefcatur/go-retail-orders/internal/users"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	log := logx.New(logx.ForEnvironment(cfg.Env, cfg.LogLevel, cfg.LogFormat)).With(zap.String("service", cfg.ServiceName))
	defer func() { _ = log.Sync() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal("db connect", zap.Error(err))
	}
	defer db.Close()
	if err := postgres.Migrate(ctx, db); err != nil {
		log.Fatal("db migrate", zap.Error(err))
	}

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// Kafka producers, one per task topic
	importProd := kafkax.NewProducer(cfg.KafkaBrokers, tasks.TopicImport, 256, log.Named("kafka.producer"))
	importProd.Start()
	emailProd := kafkax.NewProducer(cfg.KafkaBrokers, tasks.TopicEmail, 1024, log.Named("kafka.producer"))
	emailProd.Start()

	queue := tasks.NewQueue(map[tasks.Kind]tasks.Publisher{
		tasks.KindImportPriceList: importProd,
		tasks.KindSendEmail:       emailProd,
	}, tasks.NewStatusStore(rdb, cfg.TaskStatusTTL), cfg.ServiceName, log.Named("tasks"))
	bus := notify.NewEmailBus(queue, notify.NewBus(log.Named("notify")))

	// Services & handlers
	userSvc := users.NewService(&users.Repo{DB: db}, bus, log.Named("users"))
	orderSvc := orders.NewService(&orders.Repo{DB: db}, bus, log.Named("orders"))

	router := httpx.NewRouter(log.Named("http"))
	authn := httpx.Authenticate(userSvc, log)
	(&httpx.UsersHandler{Users: userSvc, Auth: authn, Log: log}).Register(router)
	(&httpx.OrdersHandler{Orders: orderSvc, Auth: authn, Log: log}).Register(router)
	(&httpx.CatalogHandler{
		Catalog:  &catalog.Repo{DB: db},
		Imports:  queue,
		Tasks:    queue.Status,
		PageSize: cfg.PageSize,
		Auth:     authn,
		Log:      log,
	}).Register(router)

	// HTTP server
	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		log.Info("http listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("listen", zap.Error(err))
		}
	}()

	// wait signal
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info("shutting down")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)
	importProd.Close()
	emailProd.Close()
	importProd.WaitClosed()
	emailProd.WaitClosed()
}
