package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/room4-2/holoassist/config"
	"github.com/room4-2/holoassist/device"
	"github.com/room4-2/holoassist/gemini"
	"github.com/room4-2/holoassist/media"
	"github.com/room4-2/holoassist/server"
	"github.com/room4-2/holoassist/session"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	deps := session.Deps{}

	if cfg.GeminiAPIKey == "" {
		log.Println("⚠️ GEMINI_API_KEY not set; voice sessions and features will report a missing key")
	} else {
		client, err := gemini.NewGenAIClient(ctx, cfg.GeminiAPIKey)
		if err != nil {
			log.Fatalf("Failed to create Gemini client: %v", err)
		}
		deps.GenAI = client
	}

	if cfg.ContactsFile != "" {
		contacts, err := device.LoadContacts(cfg.ContactsFile)
		if err != nil {
			log.Fatalf("Failed to load contacts: %v", err)
		}
		log.Printf("📇 Loaded %d contacts from %s", len(contacts), cfg.ContactsFile)
		deps.Contacts = contacts
	}

	if cfg.MQTTBroker != "" {
		nav := device.NewMQTTNavigator(device.MQTTConfig{
			Broker:   cfg.MQTTBroker,
			Topic:    cfg.MQTTTopic,
			ClientID: cfg.MQTTClientID,
			Username: cfg.MQTTUsername,
			Password: cfg.MQTTPassword,
		})
		defer nav.Close()
		deps.Navigator = nav
	}

	var store media.Store
	switch cfg.MediaBackend {
	case config.MediaS3:
		s3cfg := media.S3Config{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
			BaseURL:         cfg.MediaBaseURL,
		}
		store = media.NewS3(media.NewS3Client(s3cfg), s3cfg)
		log.Printf("🗄️ Storing generated media in s3://%s", cfg.S3Bucket)
	default:
		store = media.NewMemory(0, cfg.MediaBaseURL)
	}
	deps.Media = store

	sessionManager := session.NewManager(cfg, deps)
	go sessionManager.StartCleanupRoutine(ctx)

	srv := server.NewServer(cfg, sessionManager, store)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Println("\nReceived shutdown signal...")
		cancel()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
	}()

	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("Server error: %v", err)
	}

	log.Println("Server stopped")
}
