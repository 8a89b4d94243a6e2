// Command zenlogd is the log-and-event routing daemon: it reads its YAML
// configuration, assembles the configured pipelines, and then blocks
// listening for the signals that drive reload, sink reopen, and shutdown.
package main

import (
	"flag"
	"fmt"
	"os"

	"zenlogd/internal/builtin"
	"zenlogd/internal/config"
	"zenlogd/internal/control"
	"zenlogd/internal/health"
	"zenlogd/internal/logging"
	"zenlogd/internal/registry"
	"zenlogd/internal/runtime"
)

func main() {
	var configPath string
	var adminAddr string
	flag.StringVar(&configPath, "config", "", "path to the zenlogd YAML configuration file")
	flag.StringVar(&adminAddr, "admin-addr", ":9191", "address the admin HTTP server listens on")
	flag.Parse()

	if configPath == "" {
		if env := os.Getenv("ZENLOGD_CONFIG_FILE"); env != "" {
			configPath = env
		} else {
			configPath = "/etc/zenlogd/zenlogd.yaml"
		}
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "zenlogd: failed to read configuration: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewLogger(cfg.Severity)
	logger.WithField("path", configPath).Info("starting zenlogd")

	reg := registry.New()
	builtin.Register(reg, logger)

	rt, err := runtime.Start(cfg, reg, logger)
	if err != nil {
		logger.WithError(err).Fatal("failed to assemble pipelines")
	}

	mapper := control.NewMapper()
	control.ListenSignals(mapper, configPath, logger)

	watcher, err := control.WatchConfigFile(mapper, configPath, logger)
	if err != nil {
		logger.WithError(err).Warn("config file watcher disabled")
	} else {
		defer watcher.Close()
	}

	admin := health.NewServer(adminAddr, mapper, logger)
	admin.Start()
	defer admin.Close()

	logger.WithField("addr", adminAddr).Info("admin server listening")
	logger.Info("special signal handlers are set for INT, TERM, HUP, USR1, USR2 signals")

	for event := range mapper.Events {
		switch event.(type) {
		case runtime.Shutdown:
			logger.Info("shutting down")
			rt.Close()
			logger.Info("zenlogd has been successfully stopped")
			return
		default:
			rt.Handle(event)
		}
	}
}
