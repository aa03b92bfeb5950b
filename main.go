package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/sync/errgroup"

	"storefront/internal/config"
	"storefront/internal/database"
	"storefront/internal/handlers"
	"storefront/internal/idempotency"
	"storefront/internal/logging"
	"storefront/internal/middleware"
	"storefront/internal/models"
	"storefront/internal/notify"
	"storefront/internal/orders"
	"storefront/internal/store/mongostore"
	"storefront/internal/turnstile"
	"storefront/internal/uploads"
)

func main() {
	if err := config.Load(); err != nil {
		slog.Error("config", "err", err)
		os.Exit(1)
	}
	cfg := config.AppEnv
	log := logging.Init("storefront", cfg.LogFile, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("exit", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	client, err := database.Connect(ctx, cfg.MongoURI)
	if err != nil {
		return err
	}
	defer func() {
		dctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = client.Disconnect(dctx)
	}()

	db := client.Database(cfg.DBName)
	prepareDatabase(ctx, db, cfg, log)

	store := mongostore.New(db)
	files := uploads.New(cfg.PublicRoot)

	var verifier orders.ChallengeVerifier = turnstile.New(cfg.TurnstileSecret, cfg.TurnstileVerifyURL)
	if cfg.TurnstileSecret == "" {
		log.Warn("turnstile secret not set, accepting the development token only")
		verifier = turnstile.Static("dev-token")
	}

	idem, closeIdem, err := idempotencyStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeIdem()

	g, gctx := errgroup.WithContext(ctx)

	dispatcher, closeNotify, err := notifier(gctx, g, cfg, files, log)
	if err != nil {
		return err
	}

	svc := orders.NewService(orders.Deps{
		Tx:       store,
		Catalog:  store,
		Stock:    store,
		Regions:  store,
		Orders:   store,
		Verifier: verifier,
		Receipts: files,
		Notifier: dispatcher,
	}, orders.WithLogger(logging.New("orders")))

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router(cfg, db, store, svc, idem, files, log),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g.Go(func() error {
		log.Info("http server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")

		sctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		err := srv.Shutdown(sctx)
		// Handlers are drained, so nothing dispatches after this point.
		if cerr := closeNotify(sctx); cerr != nil {
			log.Warn("notification queue not drained", "err", cerr)
		}
		return err
	})

	return g.Wait()
}

func prepareDatabase(ctx context.Context, db *mongo.Database, cfg config.Config, log *slog.Logger) {
	for name, ensure := range map[string]func(*mongo.Database) error{
		"product": database.EnsureProductIndexes,
		"catalog": database.EnsureCatalogIndexes,
		"account": database.EnsureAccountIndexes,
		"order":   database.EnsureOrderIndexes,
	} {
		if err := ensure(db); err != nil {
			log.Warn("index warning", "set", name, "err", err)
		}
	}

	if n, err := database.SeedRegions(ctx, db); err != nil {
		log.Warn("region seed failed", "err", err)
	} else if n > 0 {
		log.Info("regions seeded", "inserted", n)
	}

	created, err := database.EnsureAdmin(ctx, db, cfg.AdminEmail, cfg.AdminPassword)
	if err != nil {
		log.Warn("admin bootstrap failed", "err", err)
	} else if created {
		log.Info("admin account created", "email", cfg.AdminEmail)
	}
}

func idempotencyStore(ctx context.Context, cfg config.Config, log *slog.Logger) (idempotency.Store, func(), error) {
	if cfg.RedisAddr == "" {
		log.Info("idempotency keys kept in memory")
		return idempotency.NewMemoryStore(cfg.IdempotencyTTL), func() {}, nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	pctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(pctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, nil, err
	}
	log.Info("idempotency keys kept in redis", "addr", cfg.RedisAddr)
	return idempotency.NewRedisStore(rdb, cfg.IdempotencyTTL), func() { _ = rdb.Close() }, nil
}

// notifier builds the order dispatcher. With notify_transport=rabbitmq the
// dispatcher only publishes; a consumer started on g delivers to Telegram.
func notifier(ctx context.Context, g *errgroup.Group, cfg config.Config, files *uploads.Store, log *slog.Logger) (*notify.AsyncDispatcher, func(context.Context) error, error) {
	var deliver notify.Sender
	if cfg.TelegramBotToken != "" && cfg.TelegramChatID != "" {
		deliver = notify.NewTelegramSender(cfg.TelegramAPIURL, cfg.TelegramBotToken, cfg.TelegramChatID, files)
	} else {
		log.Warn("telegram not configured, order notifications are only logged")
		nlog := logging.New("notify")
		deliver = notify.SenderFunc(func(_ context.Context, o models.Order) error {
			nlog.Info("order notification", "order_number", o.OrderNumber, "summary", notify.Summary(o))
			return nil
		})
	}

	opts := []notify.AsyncOption{notify.WithWorkers(cfg.NotifyWorkers)}

	if cfg.NotifyTransport != "rabbitmq" {
		d := notify.NewAsyncDispatcher(deliver, cfg.NotifyQueueSize, opts...)
		return d, d.Close, nil
	}

	conn, err := amqp.Dial(cfg.RabbitURL)
	if err != nil {
		return nil, nil, err
	}
	topology := notify.Topology{
		Exchange:   cfg.RabbitExchange,
		Queue:      cfg.RabbitQueue,
		RoutingKey: cfg.RabbitRoutingKey,
	}

	pubCh, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, err
	}
	publisher, err := notify.NewRabbitPublisher(pubCh, topology)
	if err != nil {
		_ = conn.Close()
		return nil, nil, err
	}

	subCh, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, err
	}
	consumer := notify.NewConsumer(subCh, cfg.RabbitQueue, deliver)
	g.Go(func() error { return consumer.Run(ctx) })

	d := notify.NewAsyncDispatcher(publisher, cfg.NotifyQueueSize, append(opts, notify.WithTransport("rabbitmq"))...)
	closeAll := func(sctx context.Context) error {
		err := d.Close(sctx)
		_ = conn.Close()
		return err
	}
	log.Info("order notifications routed through rabbitmq", "exchange", topology.Exchange, "queue", topology.Queue)
	return d, closeAll, nil
}

func router(cfg config.Config, db *mongo.Database, store *mongostore.Store, svc *orders.Service, idem idempotency.Store, files *uploads.Store, log *slog.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(log))
	r.Use(middleware.Metrics())
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-Idempotency-Key"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	r.Static("/public/uploads", filepath.Join(cfg.PublicRoot, "uploads"))

	r.GET("/healthz", handlers.Health(db))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.POST("/admin/login", handlers.AdminLogin(store, cfg.JWTSecret, cfg.AccessTokenTTL))

	r.GET("/products", handlers.GetProducts(db))
	r.GET("/products/sale", handlers.GetSaleProducts(db))
	r.GET("/products/:id", handlers.GetProduct(db))
	r.GET("/categories", handlers.GetCategories(db))
	r.GET("/banners", handlers.GetBanners(db))
	r.GET("/regions", handlers.GetRegions(store))

	r.POST("/orders", middleware.OptionalUser(cfg.JWTSecret), handlers.CreateOrder(svc, idem))
	r.GET("/orders/:orderNumber/track", handlers.TrackOrder(svc))

	admin := r.Group("/admin/api")
	admin.Use(middleware.AdminAuth(cfg.JWTSecret))
	{
		admin.GET("/products", handlers.GetAdminProducts(db))
		admin.POST("/products", handlers.CreateProduct(db, files))
		admin.PUT("/products/:id", handlers.UpdateProduct(db, files))
		admin.DELETE("/products/:id", handlers.DeleteProduct(db))

		admin.GET("/categories", handlers.GetAllCategories(db))
		admin.POST("/categories", handlers.CreateCategory(db))
		admin.PUT("/categories/:id", handlers.UpdateCategory(db))
		admin.DELETE("/categories/:id", handlers.DeleteCategory(db))

		admin.GET("/banners", handlers.GetAllBanners(db))
		admin.POST("/banners", handlers.CreateBanner(db, files))
		admin.PUT("/banners/:id", handlers.UpdateBanner(db, files))
		admin.DELETE("/banners/:id", handlers.DeleteBanner(db, files))

		admin.GET("/orders", handlers.ListOrders(svc))
		admin.GET("/orders/:id", handlers.GetOrder(svc))
		admin.PATCH("/orders/:id", handlers.UpdateOrder(svc))
		admin.DELETE("/orders/:id", handlers.DeleteOrder(svc))
	}

	return r
}
