package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ovelight/storyreel-backend/internal/chat"
	"github.com/ovelight/storyreel-backend/internal/generate"
	apphttp "github.com/ovelight/storyreel-backend/internal/http"
	httpH "github.com/ovelight/storyreel-backend/internal/http/handlers"
	"github.com/ovelight/storyreel-backend/internal/media"
	"github.com/ovelight/storyreel-backend/internal/observability"
	"github.com/ovelight/storyreel-backend/internal/pipeline"
	"github.com/ovelight/storyreel-backend/internal/platform/envutil"
	"github.com/ovelight/storyreel-backend/internal/platform/gcp"
	"github.com/ovelight/storyreel-backend/internal/platform/logger"
	"github.com/ovelight/storyreel-backend/internal/platform/openai"
	"github.com/ovelight/storyreel-backend/internal/publish"
)

func main() {
	// Logger
	log, err := logger.New(envutil.Str("LOG_MODE", "development"))
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	observability.Init()

	// Env
	log.Info("Loading environment variables from main...")
	addr := envutil.Str("HTTP_ADDR", ":8080")
	maxScenes := envutil.Int("MAX_SCENES", 0)
	failureMode := generate.ParseFailureMode(envutil.Str("GENERATION_FAILURE_MODE", "fallback"))
	imageDeployment := ""
	if envutil.Bool("IMAGE_GENERATION_ENABLED", true) {
		imageDeployment = envutil.Str("OPENAI_IMAGE_DEPLOYMENT", "")
	}
	videoDeployment := ""
	if envutil.Bool("VIDEO_GENERATION_ENABLED", true) {
		videoDeployment = envutil.Str("OPENAI_VIDEO_DEPLOYMENT", "")
	}

	// Object storage
	store, err := gcp.NewBucketService(log)
	if err != nil {
		log.Fatal("Object storage init failed", "error", err.Error())
	}

	// Provider client
	provider, err := openai.NewClient(log)
	if err != nil {
		log.Fatal("Provider client init failed", "error", err.Error())
	}

	// Style table
	styles, err := media.LoadStyleTable()
	if err != nil {
		log.Fatal("Style table load failed", "error", err.Error())
	}

	// Pipeline
	log.Info("Setting up pipeline from main...",
		"failure_mode", string(failureMode),
		"image_deployment", imageDeployment,
		"video_deployment", videoDeployment,
		"max_scenes", maxScenes,
	)
	runner := pipeline.NewRunner(pipeline.RunnerParams{
		Log:             log,
		Store:           store,
		Generator:       generate.NewGenerator(log, provider, failureMode),
		Illustrator:     media.NewIllustrator(log, provider, store, imageDeployment),
		Cinematographer: media.NewCinematographer(log, provider, store, styles, videoDeployment),
		Publisher:       publish.NewPublisher(log, store),
		MaxScenes:       maxScenes,
	})

	// Chat assistant over published artifacts
	assistant := chat.NewAssistant(log, store, provider)

	// HTTP
	srv := apphttp.NewServer(apphttp.RouterConfig{
		Log:             log,
		DocumentHandler: httpH.NewDocumentHandler(log, store),
		ProcessHandler:  httpH.NewProcessHandler(log, runner),
		ChatHandler:     httpH.NewChatHandler(log, assistant),
		HealthHandler:   httpH.NewHealthHandler(),
	})

	errCh := make(chan error, 1)
	go func() {
		log.Info("HTTP server listening", "addr", addr)
		errCh <- srv.Run(addr)
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-stop:
		log.Info("Shutting down", "signal", sig.String())
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			log.Error("Shutdown failed", "error", err.Error())
		}
	case err := <-errCh:
		if err != nil {
			log.Fatal("HTTP server failed", "error", err.Error())
		}
	}
}
