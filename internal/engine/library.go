package engine

import (
	"context"
	"fmt"

	"profilechat/internal/domain"
)

// Library is a located inference runtime able to host a model.
type Library interface {
	Name() string
	Location() string
	NewEngine(ctx context.Context, sel ModelSelection) (domain.Engine, error)
}

// LibrarySource is one candidate in the ordered library search.
type LibrarySource interface {
	Name() string
	Location() string
	Remote() bool
	Load(ctx context.Context) (Library, error)
}

// EngineFactory builds an engine for a model hosted by the runtime at location.
type EngineFactory func(ctx context.Context, location string, sel ModelSelection) (domain.Engine, error)

// ProbedSource is a library source found by probing a health path under its location.
type ProbedSource struct {
	name      string
	location  string
	probePath string
	remote    bool
	prober    *Prober
	factory   EngineFactory
}

// SourceConfig describes one library candidate.
type SourceConfig struct {
	Name      string
	Location  string
	ProbePath string
	Remote    bool
}

func NewProbedSource(cfg SourceConfig, prober *Prober, factory EngineFactory) *ProbedSource {
	return &ProbedSource{
		name:      cfg.Name,
		location:  cfg.Location,
		probePath: cfg.ProbePath,
		remote:    cfg.Remote,
		prober:    prober,
		factory:   factory,
	}
}

func (s *ProbedSource) Name() string     { return s.name }
func (s *ProbedSource) Location() string { return s.location }
func (s *ProbedSource) Remote() bool     { return s.remote }

// Load probes the source and returns the runtime it exposes.
func (s *ProbedSource) Load(ctx context.Context) (Library, error) {
	if s.location == "" {
		return nil, fmt.Errorf("%w: library %s has no location", ErrNotFound, s.name)
	}
	target := s.location
	if s.probePath != "" {
		target = joinLocation(s.location, s.probePath)
	}
	if err := s.prober.Exists(ctx, target); err != nil {
		return nil, fmt.Errorf("library %s: %w", s.name, err)
	}
	return &probedLibrary{source: s}, nil
}

type probedLibrary struct {
	source *ProbedSource
}

func (l *probedLibrary) Name() string     { return l.source.name }
func (l *probedLibrary) Location() string { return l.source.location }

func (l *probedLibrary) NewEngine(ctx context.Context, sel ModelSelection) (domain.Engine, error) {
	return l.source.factory(ctx, l.source.location, sel)
}

// Capability checks that the runtime can run inference at all.
type Capability interface {
	Check(ctx context.Context) error
}

// StaticCapability reports a capability decided by configuration.
type StaticCapability struct {
	Available bool
	Reason    string
}

func (c StaticCapability) Check(context.Context) error {
	if c.Available {
		return nil
	}
	if c.Reason == "" {
		return ErrCapability
	}
	return fmt.Errorf("%w: %s", ErrCapability, c.Reason)
}
