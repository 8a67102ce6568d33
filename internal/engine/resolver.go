package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"profilechat/internal/domain"
)

// State is a step of engine resolution.
type State int

const (
	Uninitialized State = iota
	LocatingLibrary
	LocatingModel
	Ready
	Unavailable
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case LocatingLibrary:
		return "locating-library"
	case LocatingModel:
		return "locating-model"
	case Ready:
		return "ready"
	case Unavailable:
		return "unavailable"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

const (
	DefaultManifest         = "mlc-chat-config.json"
	DefaultWeightShard      = "params_shard_0.bin"
	DefaultPlaceholderBytes = 1024
	nestedModelPath         = "resolve/main"
	kernelSuffix            = "-webgpu.wasm"
)

// ModelSelection is the model chosen for the engine.
type ModelSelection struct {
	ID        string
	Location  string
	KernelURL string
	// Custom is false for the built-in remote fallback, which uses default configuration.
	Custom bool
	Remote bool
}

// RemoteModel is an optional custom model hosted remotely.
type RemoteModel struct {
	ID        string
	Location  string
	KernelURL string
}

// Config configures model discovery.
type Config struct {
	ModelRoot        string
	KernelRoot       string
	Models           []string
	Manifest         string
	WeightShard      string
	RemoteModel      *RemoteModel
	FallbackModel    string
	PlaceholderBytes int64
}

func (c *Config) applyDefaults() {
	if c.Manifest == "" {
		c.Manifest = DefaultManifest
	}
	if c.WeightShard == "" {
		c.WeightShard = DefaultWeightShard
	}
	if c.PlaceholderBytes <= 0 {
		c.PlaceholderBytes = DefaultPlaceholderBytes
	}
}

// Resolver locates a runtime library and a model, then creates the engine once.
// Resolution never panics: failures move to the next candidate and, when all
// are exhausted, to the sticky Unavailable state.
type Resolver struct {
	cfg        Config
	sources    []LibrarySource
	capability Capability
	gate       Gate
	prober     *Prober
	logger     *zap.Logger

	mu        sync.Mutex
	state     State
	engine    domain.Engine
	library   Library
	selection ModelSelection
	err       error
}

func NewResolver(cfg Config, sources []LibrarySource, capability Capability, gate Gate, prober *Prober, logger *zap.Logger) *Resolver {
	cfg.applyDefaults()
	if capability == nil {
		capability = StaticCapability{Available: true}
	}
	if prober == nil {
		prober = NewProber(nil, DefaultProbeTimeout)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{
		cfg:        cfg,
		sources:    sources,
		capability: capability,
		gate:       gate,
		prober:     prober,
		logger:     logger,
	}
}

// State returns the current resolution state.
func (r *Resolver) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Selection returns the chosen model once Ready.
func (r *Resolver) Selection() ModelSelection {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.selection
}

// Resolve returns the session engine, creating it on first use.
// Once Unavailable, every call returns an error wrapping ErrUnavailable.
func (r *Resolver) Resolve(ctx context.Context) (domain.Engine, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch r.state {
	case Ready:
		return r.engine, nil
	case Unavailable:
		return nil, r.err
	}

	eng, err := r.resolveLocked(ctx)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			// a cancelled caller must not poison the session
			r.state = Uninitialized
			return nil, ctxErr
		}
		r.state = Unavailable
		r.err = fmt.Errorf("%w: %w", ErrUnavailable, err)
		r.logger.Warn("engine unavailable", zap.Error(err))
		return nil, r.err
	}
	r.state = Ready
	r.engine = eng
	r.logger.Info("engine ready",
		zap.String("library", r.library.Name()),
		zap.String("model", r.selection.ID),
		zap.Bool("remote_model", r.selection.Remote))
	return eng, nil
}

func (r *Resolver) resolveLocked(ctx context.Context) (domain.Engine, error) {
	r.state = LocatingLibrary
	if err := r.capability.Check(ctx); err != nil {
		return nil, err
	}
	lib, err := r.locateLibrary(ctx)
	if err != nil {
		return nil, err
	}
	r.library = lib

	r.state = LocatingModel
	sel, err := r.locateModel(ctx)
	if err != nil {
		return nil, err
	}
	r.selection = sel
	eng, err := lib.NewEngine(ctx, sel)
	if err != nil {
		return nil, fmt.Errorf("create engine for %s: %w", sel.ID, err)
	}
	return eng, nil
}

func (r *Resolver) locateLibrary(ctx context.Context) (Library, error) {
	var errs []error
	for _, src := range r.sources {
		if src.Remote() && !r.gate.RemoteAllowed() {
			errs = append(errs, fmt.Errorf("library %s: %w", src.Name(), ErrRemoteDisabled))
			continue
		}
		lib, err := src.Load(ctx)
		if err != nil {
			r.logger.Debug("library candidate failed", zap.String("library", src.Name()), zap.Error(err))
			errs = append(errs, err)
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			continue
		}
		return lib, nil
	}
	if len(errs) == 0 {
		return nil, fmt.Errorf("%w: no library sources configured", ErrNotFound)
	}
	return nil, fmt.Errorf("%w: no library source succeeded: %w", ErrNotFound, errors.Join(errs...))
}

func (r *Resolver) locateModel(ctx context.Context) (ModelSelection, error) {
	if sel, err := r.findLocalModel(ctx); err == nil {
		return sel, nil
	} else if ctx.Err() != nil {
		return ModelSelection{}, ctx.Err()
	}
	if !r.gate.RemoteAllowed() {
		return ModelSelection{}, fmt.Errorf("%w: no local model and %w", ErrNotFound, ErrRemoteDisabled)
	}
	if rm := r.cfg.RemoteModel; rm != nil && rm.ID != "" && rm.Location != "" {
		sel, err := r.checkRemoteModel(ctx, *rm)
		if err == nil {
			return sel, nil
		}
		r.logger.Warn("remote model rejected; using fallback model",
			zap.String("model", rm.ID), zap.String("fallback", r.cfg.FallbackModel), zap.Error(err))
	}
	if r.cfg.FallbackModel == "" {
		return ModelSelection{}, fmt.Errorf("%w: no fallback model configured", ErrNotFound)
	}
	return ModelSelection{ID: r.cfg.FallbackModel, Remote: true}, nil
}

// ModelProbe is one manifest location tried during discovery.
type ModelProbe struct {
	Model    string
	Location string
}

// ManifestProbes lists, in preference order, every manifest location tried for local models.
func (r *Resolver) ManifestProbes() []ModelProbe {
	if strings.TrimSpace(r.cfg.ModelRoot) == "" {
		return nil
	}
	var out []ModelProbe
	for _, id := range r.cfg.Models {
		out = append(out,
			ModelProbe{Model: id, Location: joinLocation(r.cfg.ModelRoot, id, r.cfg.Manifest)},
			ModelProbe{Model: id, Location: joinLocation(r.cfg.ModelRoot, id, nestedModelPath, r.cfg.Manifest)},
		)
	}
	return out
}

func (r *Resolver) findLocalModel(ctx context.Context) (ModelSelection, error) {
	for _, p := range r.ManifestProbes() {
		if err := r.prober.Exists(ctx, p.Location); err != nil {
			r.logger.Debug("model manifest probe failed", zap.String("location", p.Location), zap.Error(err))
			if ctx.Err() != nil {
				return ModelSelection{}, ctx.Err()
			}
			continue
		}
		folder := strings.TrimSuffix(strings.TrimSuffix(p.Location, r.cfg.Manifest), "/")
		sel := ModelSelection{ID: p.Model, Location: folder, Custom: true}
		if r.cfg.KernelRoot != "" {
			sel.KernelURL = joinLocation(r.cfg.KernelRoot, p.Model+kernelSuffix)
		}
		return sel, nil
	}
	return ModelSelection{}, fmt.Errorf("%w: no local model manifest", ErrNotFound)
}

func (r *Resolver) checkRemoteModel(ctx context.Context, rm RemoteModel) (ModelSelection, error) {
	shard := joinLocation(rm.Location, nestedModelPath, r.cfg.WeightShard)
	h, err := r.prober.Head(ctx, shard)
	if err != nil {
		return ModelSelection{}, err
	}
	if IsPlaceholder(h, r.cfg.PlaceholderBytes) {
		return ModelSelection{}, fmt.Errorf("%w: %s (%d bytes, %q)", ErrPlaceholder, shard, h.ContentLength, h.ContentType)
	}
	return ModelSelection{ID: rm.ID, Location: rm.Location, KernelURL: rm.KernelURL, Custom: true, Remote: true}, nil
}
