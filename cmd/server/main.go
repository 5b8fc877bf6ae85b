package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/ukydev/repair-desk/internal/auth"
	"github.com/ukydev/repair-desk/internal/config"
	"github.com/ukydev/repair-desk/internal/db"
	"github.com/ukydev/repair-desk/internal/handlers"
	"github.com/ukydev/repair-desk/internal/middleware"
	"github.com/ukydev/repair-desk/internal/models"
	"github.com/ukydev/repair-desk/internal/notify"
	"github.com/ukydev/repair-desk/internal/workorders"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("Failed to load config")
	}
	if err := cfg.ConfigureLogging(); err != nil {
		log.WithError(err).Fatal("Failed to configure logging")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.WithError(err).Fatal("Server stopped")
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	orders, users, closeStorage, err := openStorage(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStorage()

	publisher, closePublisher, err := openPublisher(cfg)
	if err != nil {
		return err
	}
	defer closePublisher()

	authService, err := auth.NewService(cfg.JWTSecret, cfg.JWTExpiry)
	if err != nil {
		return fmt.Errorf("auth service: %w", err)
	}
	if err := seedAdmin(ctx, users, authService, cfg.SeedAdminUsername, cfg.SeedAdminPassword); err != nil {
		return err
	}

	service := workorders.NewService(orders, workorders.WithPublisher(publisher))
	limiter := middleware.NewRateLimitMiddleware(cfg.RateLimitRPS, cfg.RateLimitBurst, cfg.TrustProxy)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           newRouter(authService, users, service, limiter),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", srv.Addr).Info("HTTP server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// newRouter wires the HTTP surface: health, login, account management and
// the work-order routes, behind request logging, rate limiting and bearer
// authentication.
func newRouter(authService *auth.Service, users db.UserCollection, service *workorders.Service, limiter *middleware.RateLimitMiddleware) http.Handler {
	authMiddleware := middleware.NewAuthMiddleware(authService)
	authHandler := handlers.NewAuthHandler(authService, users)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("POST /api/auth/login", authHandler.Login)
	mux.HandleFunc("GET /api/auth/profile", authHandler.GetProfile)
	mux.Handle("POST /api/users", authMiddleware.RequireRole(models.RoleAdmin)(http.HandlerFunc(authHandler.CreateUser)))
	mux.Handle("GET /api/technicians", authMiddleware.RequireRole(models.RoleAdmin, models.RoleModerator)(http.HandlerFunc(authHandler.ListTechnicians)))
	handlers.NewWorkOrderHandler(service).Register(mux, authMiddleware.RequirePermission)

	return middleware.Logging(limiter.RateLimit(authMiddleware.Authenticate(mux)))
}

func openStorage(ctx context.Context, cfg *config.Config) (db.WorkOrderCollection, db.UserCollection, func(), error) {
	if cfg.Storage == config.StorageMemory {
		log.Warn("Using in-memory storage; data is lost on restart")
		return db.NewMemoryWorkOrderCollection(), db.NewMemoryUserCollection(), func() {}, nil
	}

	client, err := db.ConnectMongo(ctx, cfg.MongoURI)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	database := client.Database(cfg.MongoDB)
	orders := &db.MongoWorkOrderCollection{Collection: database.Collection("work_orders")}
	users := &db.MongoUserCollection{Collection: database.Collection("users")}

	if err := orders.EnsureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, nil, nil, fmt.Errorf("work order indexes: %w", err)
	}
	if err := users.EnsureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, nil, nil, fmt.Errorf("user indexes: %w", err)
	}
	log.WithField("database", cfg.MongoDB).Info("Connected to MongoDB")

	closeFn := func() {
		if err := client.Disconnect(context.Background()); err != nil {
			log.WithError(err).Warn("MongoDB disconnect failed")
		}
	}
	return orders, users, closeFn, nil
}

func openPublisher(cfg *config.Config) (notify.Publisher, func(), error) {
	if cfg.MQTTBroker == "" {
		log.Info("MQTT_BROKER not set; work order events are not published")
		return notify.Nop{}, func() {}, nil
	}
	publisher, client, err := notify.ConnectMQTT(cfg.MQTTBroker, cfg.MQTTClientID, cfg.MQTTTopic)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to MQTT broker: %w", err)
	}
	log.WithFields(log.Fields{"broker": cfg.MQTTBroker, "topic": cfg.MQTTTopic}).Info("Publishing work order events")
	return publisher, func() { client.Disconnect(250) }, nil
}

// seedAdmin creates the first administrator account when credentials are
// configured and no account with that username exists.
func seedAdmin(ctx context.Context, users db.UserCollection, authService *auth.Service, username, password string) error {
	if username == "" || password == "" {
		return nil
	}
	_, err := users.FindUserByUsername(ctx, username)
	if err == nil {
		return nil
	}
	if !errors.Is(err, db.ErrUserNotFound) {
		return fmt.Errorf("seed admin lookup: %w", err)
	}
	if err := authService.ValidatePassword(password); err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}
	hash, err := authService.HashPassword(password)
	if err != nil {
		return err
	}
	user := models.User{
		Username:     username,
		PasswordHash: hash,
		Role:         models.RoleAdmin,
		Name:         username,
		IsActive:     true,
	}
	if err := users.InsertUser(ctx, user); err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}
	log.WithField("username", username).Info("Seeded admin account")
	return nil
}
