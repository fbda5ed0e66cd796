package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/muraselchat/murasel-backend/internal/auth"
	"github.com/muraselchat/murasel-backend/internal/config"
	"github.com/muraselchat/murasel-backend/internal/database"
	"github.com/muraselchat/murasel-backend/internal/handlers"
	"github.com/muraselchat/murasel-backend/internal/notify"
	"github.com/muraselchat/murasel-backend/internal/realtime"
	"github.com/muraselchat/murasel-backend/internal/routes"
	"github.com/muraselchat/murasel-backend/internal/services"
	"github.com/muraselchat/murasel-backend/internal/storage"
	"github.com/muraselchat/murasel-backend/pkg/utils"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := config.Load()

	key, err := utils.ParseKey(cfg.EncryptionKey)
	if err != nil {
		log.Fatalf("❌ Invalid ENCRYPTION_KEY: %v", err)
	}
	cipher, err := utils.NewCipher(key)
	if err != nil {
		log.Fatalf("❌ Failed to build content cipher: %v", err)
	}

	if err := database.Connect(cfg.MongoURI); err != nil {
		log.Fatalf("❌ Failed to connect to MongoDB: %v", err)
	}
	defer database.Disconnect()

	if err := database.ConnectRedis(cfg.RedisURI); err != nil {
		log.Fatalf("❌ Failed to connect to Redis: %v", err)
	}
	defer database.DisconnectRedis()

	users := storage.NewMongoUsers(database.DB)
	messages := storage.NewMongoMessages(database.DB)
	groups := storage.NewMongoGroups(database.DB)

	idxCtx, idxCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer idxCancel()
	for _, ensure := range []func(context.Context) error{
		users.EnsureIndexes, messages.EnsureIndexes, groups.EnsureIndexes,
	} {
		if err := ensure(idxCtx); err != nil {
			log.Printf("⚠️ Index creation failed: %v", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry := realtime.NewRegistry()
	bridge := realtime.NewBridge(database.RedisClient)
	fanout := realtime.NewFanout(registry, users, bridge)
	bridge.Start(ctx, fanout)

	presenceCache := services.NewPresenceCache(database.RedisClient)
	tracker := realtime.NewTracker(users, presenceCache, fanout)
	relay := realtime.NewRelay(registry)

	recent := services.NewRecentCache(database.RedisClient)
	messageSvc := services.NewMessageService(users, messages, groups, cipher, fanout, presenceCache, notify.LogNotifier{}, recent)

	jwtAuth := auth.New(cfg.JWTSecret)

	var uploadHandler *handlers.UploadHandler
	if cfg.CloudinaryName != "" {
		media, err := services.NewMediaService(cfg.CloudinaryName, cfg.CloudinaryAPIKey, cfg.CloudinaryAPISecret)
		if err != nil {
			log.Fatalf("❌ Failed to initialize Cloudinary: %v", err)
		}
		uploadHandler = handlers.NewUploadHandler(media)
	} else {
		log.Println("⚠️ Cloudinary not configured, uploads disabled")
		uploadHandler = handlers.NewUploadHandler(nil)
	}

	router := routes.New(routes.Deps{
		Auth:            jwtAuth,
		AllowedOrigins:  cfg.AllowedOrigins,
		AuthHandler:     handlers.NewAuthHandler(users, jwtAuth),
		MessageHandler:  handlers.NewMessageHandler(messageSvc),
		GroupHandler:    handlers.NewGroupHandler(messageSvc),
		UploadHandler:   uploadHandler,
		PresenceHandler: handlers.NewPresenceHandler(users, presenceCache),
		ChatWSHandler: handlers.NewChatWSHandler(
			jwtAuth, registry, tracker, relay, messageSvc, groups, presenceCache, cfg.AllowedOrigins,
		),
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("🚀 Server starting on port %s (env: %s)", cfg.Port, cfg.Environment)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("❌ Server failed: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("⚠️ Graceful shutdown failed: %v", err)
	}
}
