// Package builtin registers zenlogd's shipped source and sink types with a
// registry.Registry. It is the one place that knows how a ComponentSpec's
// free-form fields map onto each constructor's arguments.
package builtin

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"zenlogd/internal/registry"
	"zenlogd/internal/sink"
	"zenlogd/internal/source"
	"zenlogd/pkg/record"
)

// Register populates reg with every built-in source and sink type, logging
// through logger. Call this once at startup before assembling any pipeline.
func Register(reg *registry.Registry, logger *logrus.Logger) {
	reg.Register("stdin", func(spec registry.ComponentSpec, tx chan<- *record.Record) (source.Source, error) {
		return source.NewStdinSource(tx, logger), nil
	})

	reg.Register("udp", func(spec registry.ComponentSpec, tx chan<- *record.Record) (source.Source, error) {
		endpoint, err := stringField(spec, "endpoint")
		if err != nil {
			return nil, err
		}
		return source.NewUdpSource(endpoint, tx, logger)
	})

	reg.Register("tcp", func(spec registry.ComponentSpec, tx chan<- *record.Record) (source.Source, error) {
		endpoint, err := hostPortField(spec, "endpoint")
		if err != nil {
			return nil, err
		}
		return source.NewTcpSource(endpoint, tx, logger)
	})

	reg.Register("tail", func(spec registry.ComponentSpec, tx chan<- *record.Record) (source.Source, error) {
		path, err := stringField(spec, "path")
		if err != nil {
			return nil, err
		}
		return source.NewTailSource(path, tx, logger)
	})

	reg.Register("docker", func(spec registry.ComponentSpec, tx chan<- *record.Record) (source.Source, error) {
		container, err := stringField(spec, "container")
		if err != nil {
			return nil, err
		}
		return source.NewDockerSource(container, tx, logger)
	})

	reg.Register("random", func(spec registry.ComponentSpec, tx chan<- *record.Record) (source.Source, error) {
		rate := floatFieldOr(spec, "rate", 1)
		rng, err := uint16RangeFieldOr(spec, "range", [2]uint16{1, 32})
		if err != nil {
			return nil, err
		}
		return source.NewRandomSource(rate, rng, tx, logger)
	})

	reg.RegisterSink("stream", func(spec registry.ComponentSpec) (sink.Sink, error) {
		if stringFieldOr(spec, "target", "stdout") == "stderr" {
			return sink.NewStreamSink(os.Stderr, logger), nil
		}
		return sink.NewStreamSink(os.Stdout, logger), nil
	})

	reg.RegisterSink("file", func(spec registry.ComponentSpec) (sink.Sink, error) {
		name := stringFieldOr(spec, "name", "file")
		path, err := stringField(spec, "path")
		if err != nil {
			return nil, err
		}
		pattern := stringFieldOr(spec, "pattern", "{message}")
		maxBytes := int64(intFieldOr(spec, "max_bytes", 0))
		return sink.NewFileSink(name, path, pattern, maxBytes, logger)
	})

	reg.RegisterSink("kafka", func(spec registry.ComponentSpec) (sink.Sink, error) {
		brokers, err := stringSliceField(spec, "brokers")
		if err != nil {
			return nil, err
		}
		topic, err := stringField(spec, "topic")
		if err != nil {
			return nil, err
		}
		cfg := sink.KafkaSinkConfig{
			Brokers:       brokers,
			Topic:         topic,
			SASLUser:      stringFieldOr(spec, "sasl_user", ""),
			SASLPassword:  stringFieldOr(spec, "sasl_password", ""),
			SASLMechanism: sink.KafkaSASLMechanism(stringFieldOr(spec, "sasl_mechanism", string(sink.KafkaSASLNone))),
		}
		return sink.NewKafkaSink(cfg, logger)
	})
}

func stringField(spec registry.ComponentSpec, key string) (string, error) {
	v, ok := spec[key]
	if !ok {
		return "", fmt.Errorf("builtin: missing required field %q", key)
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", fmt.Errorf("builtin: field %q must be a non-empty string", key)
	}
	return s, nil
}

func stringFieldOr(spec registry.ComponentSpec, key, fallback string) string {
	if s, err := stringField(spec, key); err == nil {
		return s
	}
	return fallback
}

// hostPortField parses a [host, port] 2-element list field into a single
// "host:port" string, the shape net.Listen/net.ResolveUDPAddr expect.
func hostPortField(spec registry.ComponentSpec, key string) (string, error) {
	v, ok := spec[key]
	if !ok {
		return "", fmt.Errorf("builtin: missing required field %q", key)
	}
	raw, ok := v.([]interface{})
	if !ok || len(raw) != 2 {
		return "", fmt.Errorf("builtin: field %q must be a [host, port] pair", key)
	}
	host, ok := raw[0].(string)
	if !ok || host == "" {
		return "", fmt.Errorf("builtin: field %q must be a [host, port] pair", key)
	}
	port, ok := toInt(raw[1])
	if !ok {
		return "", fmt.Errorf("builtin: field %q must be a [host, port] pair", key)
	}
	return fmt.Sprintf("%s:%d", host, port), nil
}

// uint16RangeFieldOr parses a [min, max] 2-element list field into a
// [2]uint16, falling back to fallback when the field is absent.
func uint16RangeFieldOr(spec registry.ComponentSpec, key string, fallback [2]uint16) ([2]uint16, error) {
	v, ok := spec[key]
	if !ok {
		return fallback, nil
	}
	raw, ok := v.([]interface{})
	if !ok || len(raw) != 2 {
		return fallback, fmt.Errorf("builtin: field %q must be a [min, max] pair", key)
	}
	min, ok := toInt(raw[0])
	if !ok {
		return fallback, fmt.Errorf("builtin: field %q must be a [min, max] pair", key)
	}
	max, ok := toInt(raw[1])
	if !ok {
		return fallback, fmt.Errorf("builtin: field %q must be a [min, max] pair", key)
	}
	return [2]uint16{uint16(min), uint16(max)}, nil
}

// toInt accepts the numeric shapes a YAML/JSON decoder can hand back for an
// integer field: a native int or a float64.
func toInt(v interface{}) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}

func stringSliceField(spec registry.ComponentSpec, key string) ([]string, error) {
	v, ok := spec[key]
	if !ok {
		return nil, fmt.Errorf("builtin: missing required field %q", key)
	}
	raw, ok := v.([]interface{})
	if !ok {
		return nil, fmt.Errorf("builtin: field %q must be a list of strings", key)
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		s, ok := item.(string)
		if !ok {
			return nil, fmt.Errorf("builtin: field %q must be a list of strings", key)
		}
		out = append(out, s)
	}
	return out, nil
}

func floatFieldOr(spec registry.ComponentSpec, key string, fallback float64) float64 {
	v, ok := spec[key]
	if !ok {
		return fallback
	}
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	default:
		return fallback
	}
}

func intFieldOr(spec registry.ComponentSpec, key string, fallback int) int {
	v, ok := spec[key]
	if !ok {
		return fallback
	}
	n, ok := toInt(v)
	if !ok {
		return fallback
	}
	return n
}
