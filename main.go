package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"riposte/server/internal/config"
	"riposte/server/internal/data"
	"riposte/server/internal/logging"
	"riposte/server/internal/sim"
	"riposte/server/internal/telemetry"
	"riposte/server/internal/world"
)

func main() {
	configPath := flag.String("config", "", "path to the TOML configuration file")
	bindAddress := flag.String("addr", "", "listen address override")
	seed := flag.Int64("seed", 0, "simulation RNG seed, 0 derives one from the clock")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if *bindAddress != "" {
		cfg.Server.BindAddress = *bindAddress
	}

	logger, err := logging.NewLogger(cfg.Logging.Level, cfg.Logging.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(cfg, logger, *seed); err != nil {
		logger.Fatal("server failed", zap.Error(err))
	}
}

func run(cfg config.Config, logger *zap.Logger, seed int64) error {
	skills, err := data.LoadSkillTable(cfg.Data.SkillsPath)
	if err != nil {
		return fmt.Errorf("load skills: %w", err)
	}
	weapons, err := data.LoadWeaponTable(cfg.Data.WeaponsPath)
	if err != nil {
		return fmt.Errorf("load weapons: %w", err)
	}
	logger.Info("definition tables loaded",
		zap.Int("skills", skills.Count()),
		zap.Int("weapons", weapons.Count()))

	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	registry := telemetry.NewRegistry()
	feed := logging.NewFeed()
	feed.Attach("zap", logging.NewZapPublisher(logger))

	w := world.New(
		world.Config{
			Arena:        cfg.Arena,
			Combat:       cfg.Combat,
			TickInterval: cfg.TickInterval(),
		},
		skills, weapons, feed,
		sim.Deps{
			Logger:  logger,
			Metrics: registry,
			Clock:   logging.SystemClock{},
			RNG:     rand.New(rand.NewSource(seed)),
		},
	)

	var hub *Hub
	loop := sim.NewLoop(w, sim.LoopConfig{
		TickRate:        cfg.Server.TickRate,
		CatchupMaxTicks: cfg.Server.CatchupMaxTicks,
		CommandCapacity: cfg.Server.CommandCapacity,
		PerActorLimit:   cfg.Server.PerActorLimit,
	}, sim.LoopHooks{
		AfterStep: func(res sim.LoopStepResult) { hub.BroadcastState(res) },
	})
	hub = newHub(logger, loop, w, cfg.Server, cfg.Arena)
	feed.Attach("hub", hub)

	stop := make(chan struct{})
	go loop.Run(stop)
	defer close(stop)

	mux := http.NewServeMux()
	registerRoutes(mux, hub, registry, cfg, logger)

	server := &http.Server{Addr: cfg.Server.BindAddress, Handler: mux}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening",
			zap.String("addr", cfg.Server.BindAddress),
			zap.Int("tickRate", cfg.Server.TickRate),
			zap.Int64("seed", seed))
		errCh <- server.ListenAndServe()
	}()

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt, syscall.SIGTERM)
	select {
	case sig := <-signals:
		logger.Info("shutting down", zap.String("signal", sig.String()))
		return server.Close()
	case err := <-errCh:
		return err
	}
}

func registerRoutes(mux *http.ServeMux, hub *Hub, registry *telemetry.Registry, cfg config.Config, logger *zap.Logger) {
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("ok"))
	})

	mux.HandleFunc("/diagnostics", func(w http.ResponseWriter, r *http.Request) {
		payload := struct {
			Status     string               `json:"status"`
			ServerTime int64                `json:"serverTime"`
			TickRate   int                  `json:"tickRate"`
			Sessions   []diagnosticsSession `json:"sessions"`
			Metrics    []telemetry.KeyValue `json:"metrics"`
		}{
			Status:     "ok",
			ServerTime: time.Now().UnixMilli(),
			TickRate:   cfg.Server.TickRate,
			Sessions:   hub.DiagnosticsSnapshot(),
			Metrics:    registry.Snapshot(),
		}
		writeJSON(w, payload)
	})

	mux.HandleFunc("/join", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var req joinRequest
		if r.Body != nil {
			// An empty body joins with defaults.
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
				http.Error(w, "malformed join request", http.StatusBadRequest)
				return
			}
		}
		resp, err := hub.Join(req)
		if err != nil {
			logger.Warn("join rejected", zap.Error(err))
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		writeJSON(w, resp)
	})

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     func(r *http.Request) bool { return true },
	}

	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		actorID := r.URL.Query().Get("id")
		if actorID == "" {
			http.Error(w, "missing id", http.StatusBadRequest)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Warn("websocket upgrade failed",
				zap.String("actor", actorID), zap.Error(err))
			return
		}

		sub, snapshot, ok := hub.Subscribe(actorID, conn)
		if !ok {
			message := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "unknown actor")
			conn.WriteMessage(websocket.CloseMessage, message)
			conn.Close()
			return
		}

		initial, err := json.Marshal(stateMessage{Type: "state", Snapshot: snapshot})
		if err != nil {
			hub.Disconnect(actorID)
			return
		}
		if err := sub.write(initial); err != nil {
			hub.Disconnect(actorID)
			return
		}

		for {
			_, payload, err := conn.ReadMessage()
			if err != nil {
				hub.Disconnect(actorID)
				return
			}
			hub.HandleMessage(actorID, sub, payload)
		}
	})
}

func writeJSON(w http.ResponseWriter, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		http.Error(w, "failed to encode", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(data)
}
