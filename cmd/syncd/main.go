package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/NaveedAfraz/swapsphere-sync/internal/config"
	"github.com/NaveedAfraz/swapsphere-sync/internal/syncer"
	"github.com/NaveedAfraz/swapsphere-sync/pkg/logger"
)

// syncd is a headless consumer of the sync engine: it joins the configured
// deal rooms, keeps their state reconciled, and logs the event flow. Useful
// as a monitoring client and as the library's reference integration.
func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file loaded: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	l := logger.New(cfg.Environment)
	defer l.Logger.Sync()

	engine, err := syncer.New(cfg, l)
	if err != nil {
		l.Errorf("failed to build sync engine: %v", err)
		os.Exit(1)
	}

	if cfg.Metrics.Addr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			l.Infof("metrics listening on %s", cfg.Metrics.Addr)
			if err := http.ListenAndServe(cfg.Metrics.Addr, mux); err != nil {
				l.Errorf("metrics server stopped: %v", err)
			}
		}()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := engine.RefreshRoomList(ctx); err != nil {
		l.Errorf("initial room list fetch failed: %v", err)
	}
	cancel()

	var sessions []*syncer.Session
	for _, roomID := range roomIDsFromEnv() {
		openCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		session, err := engine.OpenRoom(openCtx, roomID)
		cancel()
		if err != nil {
			l.Errorf("failed to open room %s: %v", roomID, err)
			continue
		}
		l.Logger.Info("room open",
			zap.String("room_id", roomID),
			zap.Int("messages", len(session.Messages())),
			zap.Int("unread", session.UnreadCount()),
		)
		sessions = append(sessions, session)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	l.Infof("shutting down")
	for _, session := range sessions {
		session.Close()
	}
}

func roomIDsFromEnv() []string {
	raw := os.Getenv("SYNC_ROOMS")
	if raw == "" {
		return nil
	}
	var out []string
	for _, id := range strings.Split(raw, ",") {
		if id = strings.TrimSpace(id); id != "" {
			out = append(out, id)
		}
	}
	return out
}
