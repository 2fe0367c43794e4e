package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	log "github.com/sirupsen/logrus"

	"github.com/technicalkuldeep/blood-dapp/api"
	"github.com/technicalkuldeep/blood-dapp/eventlog"
	"github.com/technicalkuldeep/blood-dapp/hub"
)

func main() {
	if dbg, err := strconv.ParseBool(os.Getenv("DEBUG")); err == nil && dbg {
		log.SetLevel(log.DebugLevel)
	}
	logger := log.New()
	logger.SetLevel(log.GetLevel())

	secret := os.Getenv("WEBHOOK_SECRET")
	if secret == "" {
		log.Warn("WEBHOOK_SECRET not set, ingestion runs in open mode")
	}

	store := eventlog.New(envInt("EVENT_LOG_CAPACITY", eventlog.DefaultCapacity))
	broker := hub.New(logger, envInt("SUBSCRIBER_BUFFER", hub.DefaultBuffer))

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, api.SecretHeader},
	}))
	e.Use(echoprometheus.NewMiddleware("blood_dapp"))
	e.GET("/metrics", echoprometheus.NewHandler())

	api.Register(e, store, broker, api.Options{
		Gate:    api.NewSecretGate(secret),
		Limiter: api.NewRateGate(envFloat("WEBHOOK_RATE_LIMIT", 0), envInt("WEBHOOK_RATE_BURST", 20)),
		Chain: api.ChainConfig{
			RPCURL:   os.Getenv("CHAIN_RPC_URL"),
			Registry: os.Getenv("REGISTRY_CONTRACT"),
			NFT:      os.Getenv("NFT_CONTRACT"),
			Admin:    os.Getenv("ADMIN_ADDRESS"),
		},
		Logger:      logger,
		ReplayCount: envInt("STREAM_REPLAY_COUNT", 10),
	})

	listenAddr := ":8080"
	if val, ok := os.LookupEnv("PORT"); ok {
		listenAddr = ":" + val
	} else if val, ok := os.LookupEnv("FUNCTIONS_CUSTOMHANDLER_PORT"); ok {
		listenAddr = ":" + val
	}

	go func() {
		if err := e.Start(listenAddr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server: %v", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Errorf("shutdown: %v", err)
	}
	broker.Shutdown()
}

func envInt(name string, fallback int) int {
	v := os.Getenv(name)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Fatalf("invalid %s: %v", name, err)
	}
	return n
}

func envFloat(name string, fallback float64) float64 {
	v := os.Getenv(name)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		log.Fatalf("invalid %s: %v", name, err)
	}
	return f
}
