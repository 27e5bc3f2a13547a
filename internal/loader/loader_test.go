package loader

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loadstone/loadstone/internal/manifest"
	"github.com/loadstone/loadstone/internal/patch"
	"github.com/loadstone/loadstone/internal/registry"
	"github.com/loadstone/loadstone/internal/version"
)

// stubModule is a scriptable code module for lifecycle tests.
type stubModule struct {
	initFn func(ctx context.Context, host registry.Host) error
	shutFn func(ctx context.Context) error
}

func (m *stubModule) Initialize(ctx context.Context, host registry.Host) error {
	if m.initFn != nil {
		return m.initFn(ctx, host)
	}
	return nil
}

func (m *stubModule) Shutdown(ctx context.Context) error {
	if m.shutFn != nil {
		return m.shutFn(ctx)
	}
	return nil
}

// newLoader builds a loader with a fresh registry and coordinator.
func newLoader(t *testing.T) (*Loader, *registry.Registry, *patch.Coordinator) {
	t.Helper()
	reg := registry.New()
	coord := patch.NewCoordinator()
	return New(reg, coord, nil), reg, coord
}

// dataMod builds a descriptor without a code module binding.
func dataMod(t *testing.T, id string, index int) *manifest.Descriptor {
	t.Helper()
	v, err := version.Parse("1.0.0")
	require.NoError(t, err)
	return &manifest.Descriptor{
		ID:             id,
		Name:           id,
		Version:        v,
		RawVersion:     "1.0.0",
		DiscoveryIndex: index,
	}
}

// codeMod builds a descriptor bound to a registered code module name.
func codeMod(t *testing.T, id, module string, index int) *manifest.Descriptor {
	d := dataMod(t, id, index)
	d.Module = module
	return d
}

func ids(descs ...*manifest.Descriptor) []string {
	out := make([]string, len(descs))
	for i, d := range descs {
		out[i] = d.ID
	}
	return out
}

func TestLoadAll(t *testing.T) {
	ctx := context.Background()

	t.Run("data-only mods initialize without a code module", func(t *testing.T) {
		l, _, _ := newLoader(t)
		descs := []*manifest.Descriptor{dataMod(t, "a", 0), dataMod(t, "b", 1)}

		records := l.LoadAll(ctx, ids(descs...), descs)
		require.Len(t, records, 2)
		for _, rec := range records {
			assert.Equal(t, Initialized, rec.State)
			assert.NoError(t, rec.Err)
			assert.False(t, rec.LoadedAt.IsZero())
		}
		assert.Equal(t, []string{"a", "b"}, l.LoadOrder())
	})

	t.Run("code modules are instantiated and initialized in order", func(t *testing.T) {
		l, reg, _ := newLoader(t)
		var initOrder []string
		for _, name := range []string{"svc-a", "svc-b"} {
			name := name
			reg.RegisterModule(name, func() registry.CodeModule {
				return &stubModule{initFn: func(ctx context.Context, host registry.Host) error {
					initOrder = append(initOrder, host.Descriptor().ID)
					return nil
				}}
			})
		}
		descs := []*manifest.Descriptor{
			codeMod(t, "first", "svc-a", 0),
			codeMod(t, "second", "svc-b", 1),
		}

		l.LoadAll(ctx, ids(descs...), descs)
		assert.Equal(t, []string{"first", "second"}, initOrder)
	})

	t.Run("one failing mod does not stop the rest", func(t *testing.T) {
		l, reg, _ := newLoader(t)
		reg.RegisterModule("ok", func() registry.CodeModule { return &stubModule{} })
		reg.RegisterModule("broken", func() registry.CodeModule {
			return &stubModule{initFn: func(ctx context.Context, host registry.Host) error {
				return errors.New("no database")
			}}
		})

		var descs []*manifest.Descriptor
		for i := 0; i < 10; i++ {
			module := "ok"
			if i == 4 {
				module = "broken"
			}
			descs = append(descs, codeMod(t, fmt.Sprintf("mod-%02d", i), module, i))
		}

		records := l.LoadAll(ctx, ids(descs...), descs)
		require.Len(t, records, 10)

		stats := l.Stats()
		assert.Equal(t, 9, stats.Initialized)
		assert.Equal(t, 1, stats.Failed)

		rec, ok := l.Get("mod-04")
		require.True(t, ok)
		assert.Equal(t, Failed, rec.State)
		var initErr *InitializationError
		assert.ErrorAs(t, rec.Err, &initErr)
	})

	t.Run("unregistered module name fails the mod", func(t *testing.T) {
		l, _, _ := newLoader(t)
		descs := []*manifest.Descriptor{codeMod(t, "orphan", "nowhere", 0)}

		records := l.LoadAll(ctx, ids(descs...), descs)
		require.Len(t, records, 1)
		assert.Equal(t, Failed, records[0].State)
		var loadErr *RuntimeLoadError
		assert.ErrorAs(t, records[0].Err, &loadErr)
	})

	t.Run("panic during initialization is isolated", func(t *testing.T) {
		l, reg, _ := newLoader(t)
		reg.RegisterModule("panicky", func() registry.CodeModule {
			return &stubModule{initFn: func(ctx context.Context, host registry.Host) error {
				panic("unexpected nil")
			}}
		})
		descs := []*manifest.Descriptor{
			codeMod(t, "bomb", "panicky", 0),
			dataMod(t, "bystander", 1),
		}

		l.LoadAll(ctx, ids(descs...), descs)

		rec, _ := l.Get("bomb")
		assert.Equal(t, Failed, rec.State)
		assert.ErrorContains(t, rec.Err, "panic during initialization")

		rec, _ = l.Get("bystander")
		assert.Equal(t, Initialized, rec.State)
	})

	t.Run("dependent of a failed mod fails without initializing", func(t *testing.T) {
		l, reg, _ := newLoader(t)
		reg.RegisterModule("broken", func() registry.CodeModule {
			return &stubModule{initFn: func(ctx context.Context, host registry.Host) error {
				return errors.New("boom")
			}}
		})
		dependentRan := false
		reg.RegisterModule("dependent", func() registry.CodeModule {
			return &stubModule{initFn: func(ctx context.Context, host registry.Host) error {
				dependentRan = true
				return nil
			}}
		})

		base := codeMod(t, "base", "broken", 0)
		child := codeMod(t, "child", "dependent", 1)
		child.Dependencies = []manifest.Dependency{{ID: "base"}}
		descs := []*manifest.Descriptor{base, child}

		l.LoadAll(ctx, ids(descs...), descs)

		rec, _ := l.Get("child")
		assert.Equal(t, Failed, rec.State)
		var missing *MissingRuntimeDependencyError
		require.ErrorAs(t, rec.Err, &missing)
		assert.Equal(t, "base", missing.DependencyID)
		assert.False(t, dependentRan)
	})

	t.Run("optional dependency failure does not cascade", func(t *testing.T) {
		l, reg, _ := newLoader(t)
		reg.RegisterModule("broken", func() registry.CodeModule {
			return &stubModule{initFn: func(ctx context.Context, host registry.Host) error {
				return errors.New("boom")
			}}
		})

		base := codeMod(t, "base", "broken", 0)
		child := dataMod(t, "child", 1)
		child.Dependencies = []manifest.Dependency{{ID: "base", Optional: true}}
		descs := []*manifest.Descriptor{base, child}

		l.LoadAll(ctx, ids(descs...), descs)

		rec, _ := l.Get("child")
		assert.Equal(t, Initialized, rec.State)
	})

	t.Run("repeated LoadAll keeps existing records", func(t *testing.T) {
		l, reg, _ := newLoader(t)
		initCount := 0
		reg.RegisterModule("svc", func() registry.CodeModule {
			return &stubModule{initFn: func(ctx context.Context, host registry.Host) error {
				initCount++
				return nil
			}}
		})
		descs := []*manifest.Descriptor{codeMod(t, "once", "svc", 0)}

		l.LoadAll(ctx, ids(descs...), descs)
		l.LoadAll(ctx, ids(descs...), descs)
		assert.Equal(t, 1, initCount)
	})

	t.Run("initialization failure rolls back applied patches", func(t *testing.T) {
		l, reg, coord := newLoader(t)
		reg.RegisterModule("half", func() registry.CodeModule {
			return &stubModule{initFn: func(ctx context.Context, host registry.Host) error {
				host.ApplyPatches(ctx, []patch.Patch{{
					Target: "spawn", Kind: patch.Before,
					Fn: func(ctx context.Context, inv *patch.Invocation) error { return nil },
				}})
				return errors.New("failed after patching")
			}}
		})
		descs := []*manifest.Descriptor{codeMod(t, "half-done", "half", 0)}

		l.LoadAll(ctx, ids(descs...), descs)
		assert.Empty(t, coord.RecordsOf("half-done"))
	})

	t.Run("published APIs are queryable", func(t *testing.T) {
		l, reg, _ := newLoader(t)
		type calc struct{ factor int }
		reg.RegisterModule("calc", func() registry.CodeModule {
			return &stubModule{initFn: func(ctx context.Context, host registry.Host) error {
				host.PublishAPI(&calc{factor: 3})
				return nil
			}}
		})
		descs := []*manifest.Descriptor{codeMod(t, "math", "calc", 0)}
		l.LoadAll(ctx, ids(descs...), descs)

		api, ok := l.API("math")
		require.True(t, ok)
		assert.Equal(t, 3, api.(*calc).factor)

		_, ok = l.API("nothing")
		assert.False(t, ok)
	})
}

func TestUnloadAll(t *testing.T) {
	ctx := context.Background()

	t.Run("shuts down in reverse load order and removes patches", func(t *testing.T) {
		l, reg, coord := newLoader(t)
		var shutOrder []string
		for _, name := range []string{"svc-a", "svc-b"} {
			name := name
			reg.RegisterModule(name, func() registry.CodeModule {
				mod := &stubModule{}
				mod.initFn = func(ctx context.Context, host registry.Host) error {
					id := host.Descriptor().ID
					host.ApplyPatches(ctx, []patch.Patch{{
						Target: "spawn", Kind: patch.Before,
						Fn: func(ctx context.Context, inv *patch.Invocation) error { return nil },
					}})
					mod.shutFn = func(ctx context.Context) error {
						shutOrder = append(shutOrder, id)
						return nil
					}
					return nil
				}
				return mod
			})
		}
		descs := []*manifest.Descriptor{
			codeMod(t, "first", "svc-a", 0),
			codeMod(t, "second", "svc-b", 1),
		}
		l.LoadAll(ctx, ids(descs...), descs)
		require.Len(t, coord.RecordsOf("first"), 1)

		l.UnloadAll(ctx)

		assert.Equal(t, []string{"second", "first"}, shutOrder)
		assert.Empty(t, l.LoadOrder())
		assert.Empty(t, coord.RecordsOf("first"))
		assert.Empty(t, coord.RecordsOf("second"))

		rec, ok := l.Get("first")
		require.True(t, ok)
		assert.Equal(t, Unloaded, rec.State)
	})

	t.Run("shutdown errors do not stop the teardown", func(t *testing.T) {
		l, reg, _ := newLoader(t)
		reg.RegisterModule("grumpy", func() registry.CodeModule {
			return &stubModule{shutFn: func(ctx context.Context) error {
				return errors.New("refusing to go")
			}}
		})
		descs := []*manifest.Descriptor{
			codeMod(t, "grump", "grumpy", 0),
			dataMod(t, "calm", 1),
		}
		l.LoadAll(ctx, ids(descs...), descs)

		l.UnloadAll(ctx)

		for _, id := range []string{"grump", "calm"} {
			rec, _ := l.Get(id)
			assert.Equal(t, Unloaded, rec.State)
		}
	})

	t.Run("safe with nothing loaded and safe to repeat", func(t *testing.T) {
		l, _, _ := newLoader(t)
		l.UnloadAll(ctx)

		descs := []*manifest.Descriptor{dataMod(t, "a", 0)}
		l.LoadAll(ctx, ids(descs...), descs)
		l.UnloadAll(ctx)
		l.UnloadAll(ctx)

		rec, _ := l.Get("a")
		assert.Equal(t, Unloaded, rec.State)
	})

	t.Run("failed records also end unloaded", func(t *testing.T) {
		l, _, _ := newLoader(t)
		descs := []*manifest.Descriptor{codeMod(t, "orphan", "nowhere", 0)}
		l.LoadAll(ctx, ids(descs...), descs)

		l.UnloadAll(ctx)
		rec, _ := l.Get("orphan")
		assert.Equal(t, Unloaded, rec.State)
	})
}

// writeModDir writes a real manifest so reload can re-parse it from disk.
func writeModDir(t *testing.T, root, dirName, body string) string {
	t.Helper()
	dir := filepath.Join(root, dirName)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, manifest.ManifestFileName), []byte(body), 0o644))
	return dir
}

func TestReloadMod(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown id is an error", func(t *testing.T) {
		l, _, _ := newLoader(t)
		_, err := l.ReloadMod(ctx, "ghost")
		var unknown *UnknownModError
		require.ErrorAs(t, err, &unknown)
		assert.Equal(t, "ghost", unknown.ModID)
	})

	t.Run("reload picks up manifest edits", func(t *testing.T) {
		root := t.TempDir()
		dir := writeModDir(t, root, "pack", `
mod "pack" {
  name    = "Pack"
  version = "1.0.0"
}
`)
		l, _, _ := newLoader(t)
		desc, err := manifest.ParseDir(dir)
		require.NoError(t, err)
		desc.DiscoveryIndex = 7
		l.LoadAll(ctx, []string{"pack"}, []*manifest.Descriptor{desc})

		writeModDir(t, root, "pack", `
mod "pack" {
  name    = "Pack"
  version = "1.1.0"
}
`)
		rec, err := l.ReloadMod(ctx, "pack")
		require.NoError(t, err)
		assert.Equal(t, Initialized, rec.State)
		assert.Equal(t, "1.1.0", rec.Descriptor.RawVersion)
		assert.Equal(t, 7, rec.Descriptor.DiscoveryIndex)
	})

	t.Run("reload restarts the code module", func(t *testing.T) {
		root := t.TempDir()
		dir := writeModDir(t, root, "svc", `
mod "svc" {
  name    = "Service"
  version = "1.0.0"
  module  = "counter"
}
`)
		l, reg, _ := newLoader(t)
		inits, shutdowns := 0, 0
		reg.RegisterModule("counter", func() registry.CodeModule {
			return &stubModule{
				initFn: func(ctx context.Context, host registry.Host) error { inits++; return nil },
				shutFn: func(ctx context.Context) error { shutdowns++; return nil },
			}
		})
		desc, err := manifest.ParseDir(dir)
		require.NoError(t, err)
		l.LoadAll(ctx, []string{"svc"}, []*manifest.Descriptor{desc})

		rec, err := l.ReloadMod(ctx, "svc")
		require.NoError(t, err)
		assert.Equal(t, Initialized, rec.State)
		assert.Equal(t, 2, inits)
		assert.Equal(t, 1, shutdowns)
	})

	t.Run("unreadable manifest fails the mod and reports", func(t *testing.T) {
		root := t.TempDir()
		dir := writeModDir(t, root, "fragile", `
mod "fragile" {
  name    = "Fragile"
  version = "1.0.0"
}
`)
		l, _, _ := newLoader(t)
		desc, err := manifest.ParseDir(dir)
		require.NoError(t, err)
		l.LoadAll(ctx, []string{"fragile"}, []*manifest.Descriptor{desc})

		writeModDir(t, root, "fragile", `mod "fragile" {`)
		rec, err := l.ReloadMod(ctx, "fragile")
		assert.Error(t, err)
		assert.Equal(t, Failed, rec.State)
	})

	t.Run("a failed mod can recover through reload", func(t *testing.T) {
		root := t.TempDir()
		dir := writeModDir(t, root, "flaky", `
mod "flaky" {
  name    = "Flaky"
  version = "1.0.0"
  module  = "flaky-svc"
}
`)
		l, reg, _ := newLoader(t)
		attempts := 0
		reg.RegisterModule("flaky-svc", func() registry.CodeModule {
			return &stubModule{initFn: func(ctx context.Context, host registry.Host) error {
				attempts++
				if attempts == 1 {
					return errors.New("transient failure")
				}
				return nil
			}}
		})
		desc, err := manifest.ParseDir(dir)
		require.NoError(t, err)
		l.LoadAll(ctx, []string{"flaky"}, []*manifest.Descriptor{desc})

		rec, _ := l.Get("flaky")
		require.Equal(t, Failed, rec.State)

		rec, err = l.ReloadMod(ctx, "flaky")
		require.NoError(t, err)
		assert.Equal(t, Initialized, rec.State)
	})
}
