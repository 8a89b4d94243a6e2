// Package control turns OS signals and on-disk config changes into
// runtime.ControlEvent values. It is the only place in the process that
// touches os/signal, matching the original daemon's rule that signal
// handling belongs in exactly one place.
package control

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"

	"zenlogd/internal/config"
	"zenlogd/internal/logging"
	"zenlogd/internal/runtime"
)

// Mapper owns the channel every control event is delivered on. Exactly one
// goroutine should range over Events; the channel is never closed, since
// shutdown is observed by receiving a runtime.Shutdown value, not by a
// closed channel.
type Mapper struct {
	Events chan runtime.ControlEvent
}

// NewMapper builds a Mapper with a small buffer — control events are rare
// and a blocked send here would mean a slow consumer, not a fast producer.
func NewMapper() *Mapper {
	return &Mapper{Events: make(chan runtime.ControlEvent, 8)}
}

// Post delivers event without blocking the caller; a full buffer means the
// control loop is stalled. Post logs nothing and only reports whether the
// send succeeded.
func (m *Mapper) Post(event runtime.ControlEvent) bool {
	select {
	case m.Events <- event:
		return true
	default:
		return false
	}
}

// ListenSignals registers the five signals the daemon reacts to and
// translates each into a control event, or — for SIGUSR2 — applies it
// directly without routing through the runtime at all.
//
// SIGINT, SIGTERM: graceful termination, posted as runtime.Shutdown.
// SIGHUP: re-read configPath and post runtime.Reload with the fresh config.
// SIGUSR1: posted as runtime.ReopenOutputs, always valid regardless of the
// state of the config file.
// SIGUSR2: re-reads only the severity field of configPath and mutates
// logger's level in place. This never touches the pipeline runtime, so a
// severity change can never fail to apply because a pipeline failed to
// reassemble.
func ListenSignals(m *Mapper, configPath string, logger *logrus.Logger) {
	sigs := make(chan os.Signal, 8)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP, syscall.SIGUSR1, syscall.SIGUSR2)

	go func() {
		for sig := range sigs {
			logger.WithField("signal", sig).Info("caught signal")
			switch sig {
			case syscall.SIGHUP:
				cfg, err := config.LoadConfig(configPath)
				if err != nil {
					logger.WithError(err).WithField("path", configPath).Error("failed to read configuration, keeping previous pipeline set")
					continue
				}
				m.Events <- runtime.Reload{Config: cfg}
			case syscall.SIGUSR1:
				m.Events <- runtime.ReopenOutputs{}
			case syscall.SIGUSR2:
				cfg, err := config.LoadConfig(configPath)
				if err != nil {
					logger.WithError(err).WithField("path", configPath).Error("failed to read configuration, severity unchanged")
					continue
				}
				logging.SetSeverity(logger, cfg.Severity)
				logger.WithField("severity", cfg.Severity).Info("severity level reloaded")
			default:
				logger.WithField("signal", sig).Info("shutting down")
				m.Events <- runtime.Shutdown{}
			}
		}
	}()
}

// WatchConfigFile posts a runtime.Reload event whenever configPath changes
// on disk. This supplements the signal-driven SIGHUP reload with a path
// that doesn't require the operator to know the process's PID — useful
// under process supervisors that manage config via a mounted file.
func WatchConfigFile(m *Mapper, configPath string, logger *logrus.Logger) (*fsnotify.Watcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := watcher.Add(configPath); err != nil {
		watcher.Close()
		return nil, err
	}

	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				cfg, err := config.LoadConfig(configPath)
				if err != nil {
					logger.WithError(err).WithField("path", configPath).Error("config file changed but failed to parse")
					continue
				}
				logger.WithField("path", configPath).Info("config file changed on disk, reloading")
				m.Events <- runtime.Reload{Config: cfg}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.WithError(err).Warn("config watcher error")
			}
		}
	}()

	return watcher, nil
}
