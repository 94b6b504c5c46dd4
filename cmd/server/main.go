package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ruslanhut/ocpp-emu/internal/config"
	"github.com/ruslanhut/ocpp-emu/internal/ocpp/v201"
	"github.com/ruslanhut/ocpp-emu/internal/station"
	"github.com/ruslanhut/ocpp-emu/internal/storage"
)

const (
	appName    = "ocpp-emu"
	appVersion = "0.1.0"
)

func main() {
	configPath := flag.String("conf", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Printf("Error loading config: %v", err)
		os.Exit(1)
	}

	logger := initLogger(cfg)
	logger.Info("starting OCPP emulator", "app", appName, "version", appVersion)

	ctx := context.Background()

	mongoClient, err := storage.NewMongoDBClient(ctx, &cfg.MongoDB, logger)
	if err != nil {
		logger.Error("failed to connect to MongoDB", "error", err.Error())
		os.Exit(1)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := mongoClient.Close(closeCtx); err != nil {
			logger.Error("failed to close MongoDB connection", "error", err.Error())
		}
	}()

	store := storage.NewMongoKeyStore(mongoClient)

	v201.SetAbsoluteMaxValueLength(cfg.DeviceModel.AbsoluteMaxValueLength)

	stationManager := station.NewManager(mongoClient, store, logger, station.ManagerConfig{
		SyncInterval:        30 * time.Second,
		DeviceModelDefaults: station.DeviceModelDefaults{
			ItemsPerMessage: cfg.DeviceModel.ItemsPerMessage,
			BytesPerMessage: cfg.DeviceModel.BytesPerMessage,
		},
	})
	logger.Info("station manager initialized")

	demo, err := stationManager.AddStation(ctx, demoStationConfig())
	if err != nil {
		logger.Error("failed to add demonstration station", "error", err.Error())
		os.Exit(1)
	}
	stationManager.StartSync()
	stationManager.AutoStart()

	runDemonstrationReport(stationManager, demo.Config.StationID, logger)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, `{"status":"ok","version":%q}`, appVersion)
	})

	serverAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("serving metrics", "address", serverAddr, "tls", cfg.Server.TLS.Enabled)
		var err error
		if cfg.Server.TLS.Enabled {
			err = server.ListenAndServeTLS(cfg.Server.TLS.CertFile, cfg.Server.TLS.KeyFile)
		} else {
			err = server.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server failed", "error", err.Error())
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("metrics server forced to shutdown", "error", err.Error())
	}

	stationManager.Shutdown()
	logger.Info("server stopped")
}

// demoStationConfig describes the single station this process brings up at
// startup: one EVSE with one connector, device-model defaults seeded by the
// registry's startup self-check on its first GetBaseReport.
func demoStationConfig() station.Config {
	now := time.Now()
	return station.Config{
		ID:              "demo",
		StationID:       "CS001",
		Name:            "Demonstration Station",
		Enabled:         true,
		AutoStart:       true,
		Vendor:          "ocpp-emu",
		Model:           "Emulated-1",
		SerialNumber:    "SN-0001",
		FirmwareVersion: "0.1.0",
		EVSEs:           []station.EVSEConfig{
			{
				ID:         1,
				Connectors: []station.ConnectorConfig{
					{ID: 1, Type: "cCCS2", MaxPowerWatts: 50000},
				},
			},
		},
		Simulation: station.SimulationConfig{
			BootDelaySeconds:             0,
			HeartbeatIntervalSeconds:     300,
			WebSocketPingIntervalSeconds: 60,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// runDemonstrationReport walks through exactly the flow GetBaseReport/
// NotifyReport drive end to end: a FullInventory request answered by the
// façade, followed by the paginated NotifyReport send (logged, since this
// process has no transport wired to a CSMS).
func runDemonstrationReport(mgr *station.Manager, stationID string, logger *slog.Logger) {
	st, err := mgr.GetStation(stationID)
	if err != nil {
		logger.Error("demonstration station missing", "stationId", stationID, "error", err.Error())
		return
	}

	resp, err := st.Service.HandleGetBaseReport(stationID, &v201.GetBaseReportRequest{
		RequestId:  1,
		ReportBase: v201.ReportBaseFullInventory,
	})
	if err != nil {
		logger.Error("demonstration GetBaseReport failed", "stationId", stationID, "error", err.Error())
		return
	}
	logger.Info("demonstration GetBaseReport", "stationId", stationID, "status", resp.Status)

	if resp.Status != v201.GenericDeviceModelStatusAccepted {
		return
	}

	if err := st.Service.BuildAndSendReport(mgr.Handler(), 1, v201.ReportBaseFullInventory, v201.DateTime{Time: time.Now()}); err != nil {
		logger.Warn("demonstration NotifyReport not delivered (no transport wired)", "stationId", stationID, "error", err.Error())
	}
}

// initLogger initializes the structured logger using slog.
func initLogger(cfg *config.Config) *slog.Logger {
	var logger *slog.Logger
	var logFile *os.File
	var err error

	if cfg.Logging.Output != "stdout" && cfg.Logging.Output != "" {
		logFile, err = os.OpenFile(cfg.Logging.Output, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
		if err != nil {
			log.Fatal("error opening log file: ", err)
		}
	}

	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	switch cfg.Logging.Level {
	case "debug":
		opts.Level = slog.LevelDebug
	case "warn":
		opts.Level = slog.LevelWarn
	case "error":
		opts.Level = slog.LevelError
	}

	out := os.Stdout
	if logFile != nil {
		out = logFile
	}

	if cfg.Logging.Format == "json" {
		logger = slog.New(slog.NewJSONHandler(out, opts))
	} else {
		logger = slog.New(slog.NewTextHandler(out, opts))
	}

	return logger
}
