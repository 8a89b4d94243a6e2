// Package registry holds the process-wide mapping from component type name
// to the factory that builds it. A Registry is assembled once at startup by
// calling Register/RegisterSink for every built-in component type, then
// frozen: every pipeline assembled afterwards looks components up by name
// out of the same read-only map.
package registry

import (
	"errors"
	"fmt"

	"zenlogd/internal/sink"
	"zenlogd/internal/source"
	"zenlogd/pkg/record"
)

var (
	ErrMissingType  = errors.New("registry: component spec has no \"type\" field")
	ErrUnknownType  = errors.New("registry: unknown component type")
	ErrFactoryFailed = errors.New("registry: factory returned an error")
)

// ComponentSpec is the free-form configuration block for one source or sink,
// decoded from YAML/JSON. It must contain a string "type" key; every other
// key is passed through to the matching factory unexamined.
type ComponentSpec map[string]interface{}

// Type extracts and validates the "type" discriminator of a spec.
func (s ComponentSpec) Type() (string, error) {
	v, ok := s["type"]
	if !ok {
		return "", ErrMissingType
	}
	t, ok := v.(string)
	if !ok || t == "" {
		return "", ErrMissingType
	}
	return t, nil
}

// SourceFactory builds a Source from a spec, given the send half of the
// pipeline's inbound record channel.
type SourceFactory func(spec ComponentSpec, tx chan<- *record.Record) (source.Source, error)

// SinkFactory builds a Sink from a spec.
type SinkFactory func(spec ComponentSpec) (sink.Sink, error)

// Registry is the immutable-after-construction map of type name to factory.
type Registry struct {
	sources map[string]SourceFactory
	outputs map[string]SinkFactory
}

// New returns an empty Registry. Populate it with Register/RegisterSink
// before handing it to anything that assembles pipelines.
func New() *Registry {
	return &Registry{
		sources: make(map[string]SourceFactory),
		outputs: make(map[string]SinkFactory),
	}
}

// Register adds a source factory under typeName. It panics on a duplicate
// name: this only ever runs during startup wiring, never once pipelines are
// live, so a duplicate indicates a programming error, not a runtime fault.
func (r *Registry) Register(typeName string, factory SourceFactory) {
	if _, exists := r.sources[typeName]; exists {
		panic(fmt.Sprintf("registry: source type %q already registered", typeName))
	}
	r.sources[typeName] = factory
}

// RegisterSink adds a sink factory under typeName, with the same
// duplicate-panics-at-startup contract as Register.
func (r *Registry) RegisterSink(typeName string, factory SinkFactory) {
	if _, exists := r.outputs[typeName]; exists {
		panic(fmt.Sprintf("registry: sink type %q already registered", typeName))
	}
	r.outputs[typeName] = factory
}

// Lookup builds a Source from spec. Safe for concurrent use once
// construction is finished.
func (r *Registry) Lookup(spec ComponentSpec, tx chan<- *record.Record) (source.Source, error) {
	t, err := spec.Type()
	if err != nil {
		return nil, err
	}
	factory, ok := r.sources[t]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, t)
	}
	src, err := factory(spec, tx)
	if err != nil {
		return nil, fmt.Errorf("%w: type %q: %v", ErrFactoryFailed, t, err)
	}
	return src, nil
}

// LookupSink builds a Sink from spec. Safe for concurrent use once
// construction is finished.
func (r *Registry) LookupSink(spec ComponentSpec) (sink.Sink, error) {
	t, err := spec.Type()
	if err != nil {
		return nil, err
	}
	factory, ok := r.outputs[t]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, t)
	}
	snk, err := factory(spec)
	if err != nil {
		return nil, fmt.Errorf("%w: type %q: %v", ErrFactoryFailed, t, err)
	}
	return snk, nil
}
