// Package plugins loads WASM skill plugins and exposes them as agent tools.
package plugins

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
)

// Manifest describes a skill plugin. It is returned by the module's
// "manifest" export as JSON.
type Manifest struct {
	Name        string                 `json:"name"`
	Version     string                 `json:"version"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"input_schema"`
}

// Skill is a loaded WASM plugin callable as a tool.
type Skill struct {
	Manifest Manifest

	host     *Host
	compiled wazero.CompiledModule
}

// Host manages the WASM runtime and the loaded skills.
type Host struct {
	runtime wazero.Runtime
	skills  map[string]*Skill
	logger  *slog.Logger
}

// NewHost creates a WASM plugin host.
func NewHost(ctx context.Context, logger *slog.Logger) *Host {
	rt := wazero.NewRuntime(ctx)
	wasi_snapshot_preview1.MustInstantiate(ctx, rt)

	return &Host{
		runtime: rt,
		skills:  make(map[string]*Skill),
		logger:  logger,
	}
}

// LoadDir loads every *.wasm file under dir. Invalid plugins are logged and
// skipped; a missing directory is not an error.
func (h *Host) LoadDir(ctx context.Context, dir string) []*Skill {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if !os.IsNotExist(err) {
			h.logger.Warn("plugin dir unreadable", "dir", dir, "error", err)
		}
		return nil
	}

	var loaded []*Skill
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".wasm" {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		skill, err := h.load(ctx, path)
		if err != nil {
			h.logger.Warn("skipping plugin", "path", path, "error", err)
			continue
		}
		h.logger.Info("loaded skill plugin", "name", skill.Manifest.Name, "path", path)
		loaded = append(loaded, skill)
	}
	return loaded
}

func (h *Host) load(ctx context.Context, path string) (*Skill, error) {
	wasmBytes, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading plugin %s: %w", path, err)
	}

	compiled, err := h.runtime.CompileModule(ctx, wasmBytes)
	if err != nil {
		return nil, fmt.Errorf("compiling plugin %s: %w", path, err)
	}

	manifest, err := h.readManifest(ctx, compiled, path)
	if err != nil {
		return nil, err
	}
	if manifest.Name == "" {
		return nil, fmt.Errorf("plugin %s: manifest has no name", path)
	}

	skill := &Skill{
		Manifest: *manifest,
		host:     h,
		compiled: compiled,
	}
	h.skills[manifest.Name] = skill
	return skill, nil
}

func (h *Host) readManifest(ctx context.Context, compiled wazero.CompiledModule, path string) (*Manifest, error) {
	config := wazero.NewModuleConfig().WithName("")
	mod, err := h.runtime.InstantiateModule(ctx, compiled, config)
	if err != nil {
		return nil, fmt.Errorf("instantiating plugin %s: %w", path, err)
	}
	defer func() { _ = mod.Close(ctx) }()

	manifestFn := mod.ExportedFunction("manifest")
	if manifestFn == nil {
		return nil, fmt.Errorf("plugin %s does not export 'manifest'", path)
	}

	results, err := manifestFn.Call(ctx)
	if err != nil {
		return nil, fmt.Errorf("calling manifest in %s: %w", path, err)
	}
	if len(results) < 2 {
		return nil, fmt.Errorf("plugin %s: manifest returned unexpected results", path)
	}

	data, ok := mod.Memory().Read(uint32(results[0]), uint32(results[1]))
	if !ok {
		return nil, fmt.Errorf("plugin %s: reading manifest memory failed", path)
	}

	var manifest Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("plugin %s: parsing manifest: %w", path, err)
	}
	return &manifest, nil
}

// Execute runs the skill with the given input. Each call instantiates a
// fresh module, so skills cannot keep state between invocations.
func (s *Skill) Execute(ctx context.Context, input map[string]interface{}) (string, error) {
	mod, err := s.host.runtime.InstantiateModule(ctx, s.compiled, wazero.NewModuleConfig().WithName(""))
	if err != nil {
		return "", fmt.Errorf("skill %s: instantiate: %w", s.Manifest.Name, err)
	}
	defer func() { _ = mod.Close(ctx) }()

	runFn := mod.ExportedFunction("run")
	allocFn := mod.ExportedFunction("alloc")
	if runFn == nil || allocFn == nil {
		return "", fmt.Errorf("skill %s: missing 'run' or 'alloc' export", s.Manifest.Name)
	}

	inputData, err := json.Marshal(input)
	if err != nil {
		return "", fmt.Errorf("skill %s: marshal input: %w", s.Manifest.Name, err)
	}

	allocRes, err := allocFn.Call(ctx, uint64(len(inputData)))
	if err != nil {
		return "", fmt.Errorf("skill %s: alloc: %w", s.Manifest.Name, err)
	}
	ptr := uint32(allocRes[0])
	if !mod.Memory().Write(ptr, inputData) {
		return "", fmt.Errorf("skill %s: writing input memory failed", s.Manifest.Name)
	}

	results, err := runFn.Call(ctx, uint64(ptr), uint64(len(inputData)))
	if err != nil {
		return "", fmt.Errorf("skill %s: run: %w", s.Manifest.Name, err)
	}
	if len(results) < 2 {
		return "", fmt.Errorf("skill %s: run returned unexpected results", s.Manifest.Name)
	}

	out, ok := mod.Memory().Read(uint32(results[0]), uint32(results[1]))
	if !ok {
		return "", fmt.Errorf("skill %s: reading output memory failed", s.Manifest.Name)
	}
	return string(out), nil
}

// Close releases the WASM runtime and all compiled modules.
func (h *Host) Close(ctx context.Context) error {
	return h.runtime.Close(ctx)
}
