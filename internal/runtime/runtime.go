// Package runtime supervises the set of live pipelines: it assembles them
// at startup, reassembles the set wholesale on a config reload, and
// forwards reopen/shutdown control events to every pipeline.
package runtime

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"zenlogd/internal/config"
	"zenlogd/internal/metrics"
	"zenlogd/internal/pipeline"
	"zenlogd/internal/registry"
)

// ControlEvent is one of the three operator-driven actions a running
// process reacts to.
type ControlEvent interface{ controlEvent() }

// Reload swaps in a freshly assembled pipeline set from cfg. It reloads
// pipelines only — severity/logger configuration is reloaded by a separate
// path that never touches the runtime (see internal/control).
type Reload struct{ Config *config.RuntimeConfig }

// ReopenOutputs asks every live pipeline to reopen its sinks' rotate-able
// state (e.g. file handles after external log rotation).
type ReopenOutputs struct{}

// Shutdown asks the runtime to tear down every pipeline and stop.
type Shutdown struct{}

func (Reload) controlEvent()        {}
func (ReopenOutputs) controlEvent() {}
func (Shutdown) controlEvent()      {}

// Runtime owns the live set of assembled pipelines.
type Runtime struct {
	handles  []*pipeline.Handle
	registry *registry.Registry
	logger   *logrus.Logger
}

// Start assembles every pipeline named in cfg. If any pipeline fails to
// assemble, every pipeline already built is torn down in reverse order and
// the error is returned — this is fatal to the calling process.
func Start(cfg *config.RuntimeConfig, reg *registry.Registry, logger *logrus.Logger) (*Runtime, error) {
	handles, err := assembleAll(cfg, reg, logger)
	if err != nil {
		return nil, err
	}
	return &Runtime{handles: handles, registry: reg, logger: logger}, nil
}

func assembleAll(cfg *config.RuntimeConfig, reg *registry.Registry, logger *logrus.Logger) ([]*pipeline.Handle, error) {
	var handles []*pipeline.Handle
	for name, pc := range cfg.Pipelines {
		h, err := pipeline.Assemble(pipeline.Config{
			Name:    name,
			Sources: pc.Sources,
			Outputs: pc.Outputs,
		}, reg, logger)
		if err != nil {
			for i := len(handles) - 1; i >= 0; i-- {
				handles[i].Close()
			}
			return nil, fmt.Errorf("runtime: assembling pipeline %q: %w", name, err)
		}
		handles = append(handles, h)
	}
	return handles, nil
}

// Handle applies one control event to the runtime.
func (r *Runtime) Handle(event ControlEvent) {
	switch ev := event.(type) {
	case Reload:
		r.reload(ev.Config)
	case ReopenOutputs:
		r.reopenOutputs()
	case Shutdown:
		// Shutdown is observed by the caller's control loop, which then
		// calls Close; there is no in-place action here.
	}
}

// reload assembles a fresh pipeline set and only then tears down the old
// one, so pipelines keep serving traffic for the whole duration of
// reassembly. A failed reassembly is logged and the old set keeps running.
func (r *Runtime) reload(cfg *config.RuntimeConfig) {
	fresh, err := assembleAll(cfg, r.registry, r.logger)
	if err != nil {
		r.logger.WithError(err).Warn("reload failed, keeping previous pipeline set")
		metrics.ReloadsTotal.WithLabelValues("failure").Inc()
		return
	}

	old := r.handles
	r.handles = fresh
	for _, h := range old {
		h.Close()
	}
	metrics.ReloadsTotal.WithLabelValues("success").Inc()
	r.logger.Info("pipelines reloaded")
}

func (r *Runtime) reopenOutputs() {
	for _, h := range r.handles {
		h.Reopen()
	}
}

// Close tears down every live pipeline.
func (r *Runtime) Close() error {
	for _, h := range r.handles {
		h.Close()
	}
	r.handles = nil
	return nil
}
