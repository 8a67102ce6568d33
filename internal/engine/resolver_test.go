package engine

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"profilechat/internal/domain"
)

const fallbackModel = "Qwen2.5-0.5B-Instruct-q4f16_1-MLC"

type fakeEngine struct{ sel ModelSelection }

func (e *fakeEngine) Name() string { return "fake:" + e.sel.ID }

func (e *fakeEngine) ChatStream(context.Context, domain.ChatRequest) (domain.DeltaStream, error) {
	return nil, errors.New("not implemented")
}

type fakeSource struct {
	name   string
	remote bool
	err    error
	loads  int
}

func (s *fakeSource) Name() string     { return s.name }
func (s *fakeSource) Location() string { return "mem://" + s.name }
func (s *fakeSource) Remote() bool     { return s.remote }

func (s *fakeSource) Load(ctx context.Context) (Library, error) {
	s.loads++
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.err != nil {
		return nil, s.err
	}
	return fakeLibrary{name: s.name}, nil
}

type fakeLibrary struct{ name string }

func (l fakeLibrary) Name() string     { return l.name }
func (l fakeLibrary) Location() string { return "mem://" + l.name }

func (l fakeLibrary) NewEngine(_ context.Context, sel ModelSelection) (domain.Engine, error) {
	return &fakeEngine{sel: sel}, nil
}

func writeManifest(t *testing.T, root string, parts ...string) {
	t.Helper()
	dir := filepath.Join(append([]string{root}, parts...)...)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, DefaultManifest), []byte(`{}`), 0o644))
}

func TestResolveLocalModelNestedPath(t *testing.T) {
	root := t.TempDir()
	writeManifest(t, root, "SmolLM2-360M-Instruct-q4f16_1-MLC", "resolve", "main")

	r := NewResolver(Config{
		ModelRoot:     root,
		KernelRoot:    "libs",
		Models:        []string{"Llama-3.2-1B-Instruct-q4f16_1-MLC", "SmolLM2-360M-Instruct-q4f16_1-MLC"},
		FallbackModel: fallbackModel,
	}, []LibrarySource{&fakeSource{name: "bundle"}}, nil, NewGate("http://localhost", false), nil, nil)

	eng, err := r.Resolve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Ready, r.State())

	sel := r.Selection()
	assert.Equal(t, "SmolLM2-360M-Instruct-q4f16_1-MLC", sel.ID)
	assert.Equal(t, filepath.Join(root, "SmolLM2-360M-Instruct-q4f16_1-MLC", "resolve", "main"), sel.Location)
	assert.Equal(t, filepath.Join("libs", "SmolLM2-360M-Instruct-q4f16_1-MLC-webgpu.wasm"), sel.KernelURL)
	assert.True(t, sel.Custom)
	assert.False(t, sel.Remote)
	assert.Equal(t, "fake:SmolLM2-360M-Instruct-q4f16_1-MLC", eng.Name())

	again, err := r.Resolve(context.Background())
	require.NoError(t, err)
	assert.Same(t, eng, again)
}

func TestResolvePrefersRootManifestInOrder(t *testing.T) {
	root := t.TempDir()
	writeManifest(t, root, "B")
	writeManifest(t, root, "A", "resolve", "main")
	writeManifest(t, root, "A")

	r := NewResolver(Config{ModelRoot: root, Models: []string{"A", "B"}},
		[]LibrarySource{&fakeSource{name: "bundle"}}, nil, Gate{}, nil, nil)
	_, err := r.Resolve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "A", r.Selection().ID)
	assert.Equal(t, filepath.Join(root, "A"), r.Selection().Location)
}

func TestResolveUnavailableWithoutRemoteIsSticky(t *testing.T) {
	src := &fakeSource{name: "bundle"}
	r := NewResolver(Config{ModelRoot: t.TempDir(), Models: []string{"A"}, FallbackModel: fallbackModel},
		[]LibrarySource{src}, nil, NewGate("http://localhost", false), nil, nil)

	_, err := r.Resolve(context.Background())
	require.ErrorIs(t, err, ErrUnavailable)
	assert.ErrorIs(t, err, ErrRemoteDisabled)
	assert.Equal(t, Unavailable, r.State())

	_, err = r.Resolve(context.Background())
	require.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, 1, src.loads)
}

func TestResolveFallbackModelWhenRemoteAllowed(t *testing.T) {
	r := NewResolver(Config{ModelRoot: t.TempDir(), Models: []string{"A"}, FallbackModel: fallbackModel},
		[]LibrarySource{&fakeSource{name: "cdn", remote: true}}, nil, NewGate("https://portfolio.example.com", false), nil, nil)

	_, err := r.Resolve(context.Background())
	require.NoError(t, err)
	sel := r.Selection()
	assert.Equal(t, fallbackModel, sel.ID)
	assert.False(t, sel.Custom)
	assert.True(t, sel.Remote)
}

func shardServer(t *testing.T, length, contentType string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/custom/resolve/main/params_shard_0.bin" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Length", length)
		w.Header().Set("Content-Type", contentType)
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestResolvePlaceholderShardFallsBack(t *testing.T) {
	srv := shardServer(t, "120", "text/plain")
	r := NewResolver(Config{
		RemoteModel:   &RemoteModel{ID: "Custom-Profile-q4f16_1-MLC", Location: srv.URL + "/custom"},
		FallbackModel: fallbackModel,
	}, []LibrarySource{&fakeSource{name: "cdn", remote: true}}, nil, Gate{OptIn: true}, NewProber(srv.Client(), time.Second), nil)

	_, err := r.Resolve(context.Background())
	require.NoError(t, err)
	sel := r.Selection()
	assert.Equal(t, fallbackModel, sel.ID)
	assert.False(t, sel.Custom)
	assert.True(t, sel.Remote)
}

func TestResolveRemoteCustomModel(t *testing.T) {
	srv := shardServer(t, "33554432", "application/octet-stream")
	r := NewResolver(Config{
		RemoteModel:   &RemoteModel{ID: "Custom-Profile-q4f16_1-MLC", Location: srv.URL + "/custom", KernelURL: srv.URL + "/custom.wasm"},
		FallbackModel: fallbackModel,
	}, []LibrarySource{&fakeSource{name: "cdn", remote: true}}, nil, Gate{OptIn: true}, NewProber(srv.Client(), time.Second), nil)

	_, err := r.Resolve(context.Background())
	require.NoError(t, err)
	sel := r.Selection()
	assert.Equal(t, "Custom-Profile-q4f16_1-MLC", sel.ID)
	assert.Equal(t, srv.URL+"/custom.wasm", sel.KernelURL)
	assert.True(t, sel.Custom)
	assert.True(t, sel.Remote)
}

func TestResolveSkipsRemoteLibraryWhenGated(t *testing.T) {
	root := t.TempDir()
	writeManifest(t, root, "A")
	cdn := &fakeSource{name: "cdn", remote: true}
	broken := &fakeSource{name: "bundle", err: ErrNotFound}
	local := &fakeSource{name: "script"}

	r := NewResolver(Config{ModelRoot: root, Models: []string{"A"}},
		[]LibrarySource{cdn, broken, local}, nil, Gate{}, nil, nil)
	eng, err := r.Resolve(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, eng)
	assert.Zero(t, cdn.loads)
	assert.Equal(t, 1, broken.loads)
	assert.Equal(t, 1, local.loads)
}

func TestResolveCapabilityMissing(t *testing.T) {
	r := NewResolver(Config{}, []LibrarySource{&fakeSource{name: "bundle"}},
		StaticCapability{Reason: "no accelerator"}, Gate{OptIn: true}, nil, nil)
	_, err := r.Resolve(context.Background())
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.ErrorIs(t, err, ErrCapability)
}

func TestResolveNoLibraries(t *testing.T) {
	r := NewResolver(Config{FallbackModel: fallbackModel}, nil, nil, Gate{OptIn: true}, nil, nil)
	_, err := r.Resolve(context.Background())
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestResolveCancelledContextDoesNotStick(t *testing.T) {
	root := t.TempDir()
	writeManifest(t, root, "A")
	r := NewResolver(Config{ModelRoot: root, Models: []string{"A"}},
		[]LibrarySource{&fakeSource{name: "bundle"}}, nil, Gate{}, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := r.Resolve(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, Uninitialized, r.State())

	_, err = r.Resolve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Ready, r.State())
}

func TestDiagnose(t *testing.T) {
	root := t.TempDir()
	writeManifest(t, root, "A")
	r := NewResolver(Config{ModelRoot: root, Models: []string{"A", "B"}, RemoteModel: &RemoteModel{ID: "C", Location: "https://cdn.example.com/C"}},
		[]LibrarySource{&fakeSource{name: "bundle"}, &fakeSource{name: "cdn", remote: true}}, nil, Gate{}, nil, nil)

	rep := r.Diagnose(context.Background())
	assert.Equal(t, Uninitialized, rep.State)
	assert.False(t, rep.RemoteAllowed)
	assert.NoError(t, rep.Capability)
	require.Len(t, rep.Libraries, 2)
	assert.True(t, rep.Libraries[0].OK())
	assert.True(t, rep.Libraries[1].Skipped)
	require.Len(t, rep.Models, 4)
	assert.True(t, rep.Models[0].OK())
	assert.False(t, rep.Models[1].OK())
	require.NotNil(t, rep.RemoteModel)
	assert.True(t, rep.RemoteModel.Skipped)

	text := rep.String()
	assert.Contains(t, text, "engine state: uninitialized")
	assert.Contains(t, text, "remote access: disabled")
	assert.Contains(t, text, "[ ok ] bundle")
	assert.Contains(t, text, "[skip] cdn")
	assert.Equal(t, Uninitialized, r.State())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "locating-model", LocatingModel.String())
	assert.Equal(t, "state(42)", State(42).String())
}
