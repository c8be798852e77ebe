package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/muurk/wifiprov/internal/config"
	"github.com/muurk/wifiprov/internal/discovery"
	"github.com/muurk/wifiprov/internal/gateway"
	"github.com/muurk/wifiprov/internal/logging"
	"github.com/muurk/wifiprov/internal/metrics"
	"github.com/muurk/wifiprov/internal/monitor"
	"github.com/muurk/wifiprov/internal/notify"
	"github.com/muurk/wifiprov/internal/provision"
	"github.com/muurk/wifiprov/internal/radio"
	"github.com/muurk/wifiprov/internal/server"
	"github.com/muurk/wifiprov/internal/version"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the provisioning portal",
	Long: `Start the provisioning portal.

Settings are read from the config file, WIFIPROV_* environment variables
and the flags below, in increasing order of precedence.

Endpoints:
  /ws             provisioning channel (get_networks, scan_wifi, connect_wifi)
  /api/v1/status  session phase, link state and version
  /healthz        liveness probe
  /metrics        Prometheus metrics (server.metrics)`,
	Example: `  # Run against NetworkManager on wlan0
  wifiprov-server serve

  # Try it out without touching the radio
  wifiprov-server serve --driver mock --listen 127.0.0.1:8080 --log-level debug

  # Bring the setup hotspot up at start and publish outcomes to MQTT
  wifiprov-server serve --hotspot --mqtt-broker tcp://192.168.1.10:1883`,
	RunE: runServe,
}

func init() {
	f := serveCmd.Flags()
	f.String("listen", "", "Listen address (e.g. :8080)")
	f.String("driver", "", fmt.Sprintf("Radio driver %v", radio.Drivers()))
	f.String("interface", "", "Wireless interface")
	f.Duration("scan-timeout", 0, "Scan timeout")
	f.Duration("connect-timeout", 0, "Connect timeout")
	f.Bool("hotspot", false, "Bring the setup hotspot up at start")
	f.String("mqtt-broker", "", "MQTT broker URL for outcome notifications")
	f.Bool("mdns", true, "Advertise the portal over mDNS")
	f.String("log-level", "", "Log level (debug, info, warn, error)")
	f.String("log-format", "", "Log format (console, json)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, path, err := config.Load(configPath, cmd.Flags())
	if err != nil {
		return err
	}
	if err := logging.InitializeFormat(cfg.Log.Level, cfg.Log.Format); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer logging.Sync()

	if path != "" {
		logging.Info("Loaded configuration", zap.String("path", path))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dev, err := radio.Open(ctx, cfg.RadioOptions())
	if err != nil {
		return err
	}
	defer func() {
		if err := dev.Close(); err != nil {
			logging.Warn("Failed to close radio", zap.Error(err))
		}
	}()
	logging.Info("Radio ready",
		zap.String("driver", string(dev.Driver)),
		zap.String("interface", cfg.Radio.Interface),
	)

	if cfg.AccessPoint.StartOnBoot {
		startHotspot(ctx, dev)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	if err := metrics.Register(reg); err != nil {
		return err
	}

	session := provision.NewSession(dev.Radio, cfg.SessionOptions(), provision.WithRecorder(metrics.Recorder{}))
	hub := gateway.NewHub(session, cfg.GatewayOptions())
	session.Subscribe(hub)

	if cfg.MQTT.Broker != "" {
		pub, err := notify.Dial(cfg.MQTTOptions())
		if err != nil {
			// Notifications are optional; the portal still works without them.
			logging.Warn("MQTT notifications disabled", zap.Error(err))
		} else {
			session.Subscribe(pub)
			defer pub.Close()
		}
	}

	watcher := monitor.NewWatcher(dev.Link, cfg.Radio.PollInterval)
	go watcher.Run(ctx)

	srv := server.New(server.Config{
		Listen:          cfg.Server.Listen,
		WSPath:          cfg.Server.WSPath,
		Metrics:         cfg.Server.Metrics,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
		Gatherer:        reg,
	}, session, hub, watcher)
	if err := srv.Listen(); err != nil {
		return err
	}

	if cfg.Discovery.Enabled {
		adv, err := discovery.Advertise(discovery.Advertisement{
			Instance:   cfg.Discovery.Instance,
			Port:       portOf(srv.Addr()),
			Path:       cfg.Server.WSPath,
			Version:    version.Version,
			Interfaces: cfg.Discovery.Interfaces,
		})
		if err != nil {
			logging.Warn("mDNS advertisement disabled", zap.Error(err))
		} else {
			defer adv.Shutdown()
		}
	}

	sessionErr := make(chan error, 1)
	go func() { sessionErr <- session.Run(ctx) }()

	err = srv.Run(ctx)
	stop()

	select {
	case serr := <-sessionErr:
		if serr != nil && !errors.Is(serr, context.Canceled) {
			logging.Warn("Session stopped", zap.Error(serr))
		}
	case <-time.After(cfg.Server.ShutdownTimeout):
		logging.Warn("Session did not stop in time")
	}
	return err
}

// startHotspot brings the setup access point up. Failure is logged, not fatal:
// the device may already be on a network.
func startHotspot(ctx context.Context, dev *radio.Device) {
	if dev.Hotspot == nil {
		logging.Warn("Radio driver has no hotspot support", zap.String("driver", string(dev.Driver)))
		return
	}
	if err := dev.Hotspot.HotspotUp(ctx); err != nil {
		logging.Warn("Failed to start hotspot", zap.Error(err))
		return
	}
	logging.Info("Hotspot started")
}

func portOf(addr net.Addr) int {
	if tcp, ok := addr.(*net.TCPAddr); ok {
		return tcp.Port
	}
	return 0
}
