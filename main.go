package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"waste-rewards-system/chain"
	"waste-rewards-system/handlers"
	"waste-rewards-system/metrics"
	"waste-rewards-system/models"
	"waste-rewards-system/queue"
	"waste-rewards-system/reconcile"
	"waste-rewards-system/security"
	"waste-rewards-system/services"
	"waste-rewards-system/utils"
	"waste-rewards-system/wallet"
	"waste-rewards-system/workers"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found, reading environment variables directly")
	}

	app := fiber.New(fiber.Config{
		BodyLimit: 32 * 1024 * 1024, // 32MB, verification documents only
	})

	// CORS for the web and mobile clients
	allowedOriginsEnv := os.Getenv("ALLOWED_ORIGINS")
	if allowedOriginsEnv == "" {
		log.Println("⚠️  ALLOWED_ORIGINS environment variable not set, using default: http://localhost:3000")
		allowedOriginsEnv = "http://localhost:3000"
	}
	allowedOriginsList := strings.Split(allowedOriginsEnv, ",")
	for i, origin := range allowedOriginsList {
		allowedOriginsList[i] = strings.TrimSpace(origin)
	}
	allowedOriginsString := strings.Join(allowedOriginsList, ",")

	app.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOriginsString,
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS,PATCH,HEAD",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID, X-Admin-Key",
		ExposeHeaders:    "Content-Length, Content-Type, Authorization, X-Request-ID",
		AllowCredentials: true,
		MaxAge:           86400, // 24 hours
	}))

	registry := prometheus.NewRegistry()
	metrics.Register(registry)
	app.Use(func(c *fiber.Ctx) error {
		err := c.Next()
		metrics.RequestCount.WithLabelValues(c.Method(), c.Route().Path, statusLabel(c)).Inc()
		return err
	})
	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler(registry)))

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL environment variable not set")
	}
	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		log.Fatal("JWT_SECRET environment variable not set")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatal("failed to connect to database:", err)
	}

	if err := db.AutoMigrate(
		&models.Account{},
		&models.AgentProfile{},
		&models.ServiceArea{},
		&models.VerificationDocument{},
		&models.WasteReport{},
		&models.Notification{},
		&models.RegistrationMirror{},
		&models.PlatformSetting{},
	); err != nil {
		log.Fatal("failed to migrate database:", err)
	}
	seedSettings(db)

	if os.Getenv("R2_BUCKET_NAME") != "" {
		if err := utils.InitObjectStore(); err != nil {
			log.Fatal("failed to initialize object store client:", err)
		}
	} else {
		log.Println("⚠️  R2_BUCKET_NAME not set — verification document uploads disabled")
	}

	// Redis is optional: without it revocation and reconcile locking fall back
	// to in-process state, which is fine for a single instance.
	var redisClient *redis.Client
	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		opts, err := redis.ParseURL(redisURL)
		if err != nil {
			log.Fatal("invalid REDIS_URL:", err)
		}
		redisClient = redis.NewClient(opts)
	}

	tokenTTL := 24 * time.Hour
	var revoker security.Revoker
	var reconcileLock reconcile.Lock
	if redisClient != nil {
		revoker = security.NewRedisRevoker(redisClient, tokenTTL, "")
		reconcileLock = reconcile.NewRedisLock(redisClient, 2*time.Minute, "")
		log.Println("✅ Redis-backed session revocation and reconcile locking")
	} else {
		revoker = security.NewMemoryRevoker()
		reconcileLock = reconcile.NewMemoryLock()
		log.Println("⚠️  In-memory session revocation and reconcile locking (single instance only)")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	chainClient, err := chain.NewClient(ctx, chain.Config{
		RPCURL:          os.Getenv("CHAIN_RPC_URL"),
		ContractAddress: os.Getenv("REGISTRY_CONTRACT_ADDRESS"),
	})
	if err != nil {
		log.Fatal("failed to connect to rewards registry:", err)
	}
	defer chainClient.Close()

	var eventQueue queue.Queue
	if rabbitURL := os.Getenv("RABBITMQ_URL"); rabbitURL != "" {
		rabbit, err := queue.NewRabbitMQQueue(queue.RabbitMQConfig{URL: rabbitURL, Durable: true, Prefetch: 16})
		if err != nil {
			log.Fatal("failed to connect to rabbitmq:", err)
		}
		defer rabbit.Close()
		eventQueue = rabbit
		log.Println("✅ RabbitMQ event queue connected")
	} else {
		eventQueue = queue.NewMemoryQueue(256)
		log.Println("⚠️  RABBITMQ_URL not set — using in-memory event queue")
	}

	authService := services.NewAuthService(db, []byte(jwtSecret), tokenTTL, revoker)

	// The operator signer backs server-side reconciliation and chain mirroring.
	connector := wallet.NewKeyedConnector(os.Getenv("OPERATOR_PRIVATE_KEY"), chainClient.ChainID())
	reconciler := reconcile.New(connector, authService, chainClient, reconcileLock)
	go reconciler.WatchAccountChanges(ctx)

	operatorSigner := operatorSession(ctx, connector)
	wasteService := services.NewWasteService(db, eventQueue, chainClient, operatorSigner)
	agentService := services.NewAgentService(db, eventQueue)
	notificationService := services.NewNotificationService(db)

	syncClient := workers.NewRegistrySyncClient(db, chainClient)
	go workers.PollRegistrations(ctx, syncClient, 30*time.Second)

	notificationWorker := workers.NewNotificationWorker(db, eventQueue)
	go func() {
		if err := notificationWorker.Start(ctx, 4); err != nil && ctx.Err() == nil {
			log.Printf("❌ notification worker stopped: %v", err)
		}
	}()

	services.StartDivergenceSweep(db)

	handlers.SetupAuthRoutes(app, authService, reconciler)
	handlers.SetupUserRoutes(app, authService, wasteService, notificationService)
	handlers.SetupWasteRoutes(app, wasteService, []byte(jwtSecret), revoker, db)
	handlers.SetupAgentRoutes(app, agentService, []byte(jwtSecret), revoker, db)
	handlers.SetupAdminRoutes(app, db, authService)

	port := os.Getenv("PORT")
	if port == "" {
		port = "5200"
	}

	go func() {
		if err := app.Listen(":" + port); err != nil {
			log.Printf("Server error: %v", err)
		}
	}()

	log.Printf("✅ Server running on http://localhost:%s", port)
	log.Println("✅ Registry polling running (every 30s)")
	log.Println("✅ Notification fan-out worker running")
	log.Printf("✅ CORS configured for origins: %s", allowedOriginsString)

	<-ctx.Done()
	log.Println("Shutting down server...")
	if err := app.Shutdown(); err != nil {
		log.Printf("Shutdown error: %v", err)
	}
}

func statusLabel(c *fiber.Ctx) string {
	switch code := c.Response().StatusCode(); {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}

func seedSettings(db *gorm.DB) {
	for _, setting := range models.DefaultSettings {
		s := setting
		if err := db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoNothing: true,
		}).Create(&s).Error; err != nil {
			log.Printf("⚠️  failed to seed setting %s: %v", s.Key, err)
		}
	}
}

// operatorSession resolves the operator signer once at startup; without a key
// the waste lifecycle runs with chain mirroring degraded.
func operatorSession(ctx context.Context, connector *wallet.KeyedConnector) *bind.TransactOpts {
	session, err := connector.RequestAddress(ctx)
	if err != nil {
		log.Println("⚠️  OPERATOR_PRIVATE_KEY not set — chain mirroring degraded to off-chain only")
		return nil
	}
	log.Printf("✅ Operator signer %s ready", session.Address)
	return session.Signer
}
