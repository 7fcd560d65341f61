// Package registry owns the set of loaded plugin instances: allocation,
// parameter mirroring, and lifecycle event emission. Every mutation is
// serialized under a single mutex held for the duration of one RPC handler.
package registry

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/shaban/modhost-bridge/catalog"
)

// ModHostCommander is the narrow surface registry needs from modhost.Client,
// declared here so this package never imports modhost or ipc directly.
type ModHostCommander interface {
	Send(ctx context.Context, command string, timeout time.Duration) (string, error)
}

// EventPublisher is the narrow publish surface registry needs from the IPC
// event publisher.
type EventPublisher interface {
	PublishEvent(eventType string, data interface{}) error
}

// CatalogSource is the narrow surface registry needs from catalog.Catalog.
type CatalogSource interface {
	Scan() (map[string]catalog.Info, error)
	Presets(uri string) ([]catalog.Preset, error)
	ValidatePreset(uri, presetURI string) (bool, error)
	RescanPresets(uri string) ([]catalog.Preset, error)
	GUI(uri string) (*catalog.GUI, error)
	GUIMini(uri string) (*catalog.GUI, error)
	Essentials(uri string) (*catalog.Info, error)
	BundleLoaded(path string) (bool, error)
	AddBundle(path string) ([]string, error)
	RemoveBundle(path, resourcePath string) ([]string, error)
	ListPluginsInBundle(path string) ([]string, error)
}

// BundleWatcherControl is the narrow lifecycle surface registry needs to
// start/stop bundle monitoring during initialize/shutdown.
type BundleWatcherControl interface {
	Start() error
	Stop()
}

// Instance is a loaded plugin, tracked in the registry.
type Instance struct {
	InstanceID   string             `json:"instance_id"`
	HostInstance int                `json:"host_instance"`
	URI          string             `json:"uri"`
	Name         string             `json:"name"`
	Brand        string             `json:"brand"`
	Version      string             `json:"version"`
	Parameters   map[string]float64 `json:"parameters"`
	Ports        catalog.Ports      `json:"ports"`
	X            float64            `json:"x"`
	Y            float64            `json:"y"`
	Enabled      bool               `json:"enabled"`
	Preset       string             `json:"preset,omitempty"`
	CreatedAt    time.Time          `json:"created_at"`
}

// Registry owns available plugin metadata and live instances. All mutations
// happen under mu, held for the duration of a single RPC handler call.
type Registry struct {
	mu        sync.Mutex
	available map[string]catalog.Info
	instances map[string]*Instance
	ordinal   int

	host     ModHostCommander
	catalog  CatalogSource
	events   EventPublisher
	watcher  BundleWatcherControl
	timeout  time.Duration
	warnFunc func(format string, args ...interface{})
}

// SetWarnFunc installs a sink for best-effort warnings (failed remove on
// unload, failed initial param_set, failed publish). Pass nil to discard
// them, which is also the default.
func (r *Registry) SetWarnFunc(fn func(format string, args ...interface{})) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.warnFunc = fn
}

// New constructs a Registry. It does not scan or start watching until
// Initialize is called.
func New(host ModHostCommander, cat CatalogSource, events EventPublisher, watcher BundleWatcherControl, rpcTimeout time.Duration) *Registry {
	return &Registry{
		available: make(map[string]catalog.Info),
		instances: make(map[string]*Instance),
		host:      host,
		catalog:   cat,
		events:    events,
		watcher:   watcher,
		timeout:   rpcTimeout,
	}
}

// Initialize performs a full catalog scan, populates available, and starts
// bundle monitoring.
func (r *Registry) Initialize() error {
	r.mu.Lock()
	scanned, err := r.catalog.Scan()
	if err != nil {
		r.mu.Unlock()
		return fmt.Errorf("initialize: catalog scan: %w", err)
	}
	r.available = scanned
	r.mu.Unlock()

	// The watcher is started without mu held: its initial scan may call
	// back into Rescan.
	if r.watcher != nil {
		if err := r.watcher.Start(); err != nil {
			return fmt.Errorf("initialize: bundle watcher: %w", err)
		}
	}
	return nil
}

// Shutdown unloads every instance (best-effort) and stops bundle monitoring.
func (r *Registry) Shutdown(ctx context.Context) {
	r.mu.Lock()
	ids := make([]string, 0, len(r.instances))
	for id := range r.instances {
		ids = append(ids, id)
	}
	r.mu.Unlock()

	for _, id := range ids {
		_ = r.UnloadPlugin(ctx, id)
	}

	if r.watcher != nil {
		r.watcher.Stop()
	}
}

// LoadPlugin allocates a fresh instance, asks mod-host to add it, and
// best-effort applies initialParams.
func (r *Registry) LoadPlugin(ctx context.Context, uri string, x, y float64, initialParams map[string]float64) (*Instance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	info, ok := r.available[uri]
	if !ok {
		return nil, fmt.Errorf("load_plugin: unknown uri %q", uri)
	}

	r.ordinal++
	instanceID := newInstanceID(r.ordinal)
	requestedHost := r.ordinal

	resp, err := r.host.Send(ctx, fmt.Sprintf("add %s %d", uri, requestedHost), r.timeout)
	if err != nil {
		return nil, fmt.Errorf("load_plugin: %w", err)
	}
	hostInstance, err := parseRespInt(resp)
	if err != nil {
		return nil, fmt.Errorf("load_plugin: %w", err)
	}
	if hostInstance < 0 {
		return nil, fmt.Errorf("load_plugin: mod-host rejected add with code %d", hostInstance)
	}

	inst := &Instance{
		InstanceID:   instanceID,
		HostInstance: hostInstance,
		URI:          uri,
		Name:         info.Name,
		Brand:        info.Brand,
		Version:      info.Version,
		Parameters:   make(map[string]float64, len(initialParams)),
		Ports:        info.Ports,
		X:            x,
		Y:            y,
		Enabled:      true,
		CreatedAt:    time.Now(),
	}

	for symbol, value := range initialParams {
		cmd := fmt.Sprintf("param_set %s %s %s", instanceID, symbol, formatFloat(value))
		if _, err := r.host.Send(ctx, cmd, r.timeout); err != nil {
			r.warn("load_plugin: initial param_set %s failed: %v", symbol, err)
			continue
		}
		inst.Parameters[symbol] = value
	}

	r.instances[instanceID] = inst
	r.publish("plugin_loaded", inst)
	return inst, nil
}

// UnloadPlugin removes a loaded instance, best-effort notifying mod-host.
func (r *Registry) UnloadPlugin(ctx context.Context, instanceID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.unloadLocked(ctx, instanceID)
}

func (r *Registry) unloadLocked(ctx context.Context, instanceID string) error {
	if _, ok := r.instances[instanceID]; !ok {
		return fmt.Errorf("unload_plugin: unknown instance %q", instanceID)
	}
	if _, err := r.host.Send(ctx, "remove "+instanceID, r.timeout); err != nil {
		r.warn("unload_plugin: remove %s failed: %v", instanceID, err)
	}
	delete(r.instances, instanceID)
	r.publish("plugin_unloaded", map[string]string{"instance_id": instanceID})
	return nil
}

// SetParameter sends param_set and, on success, updates the local mirror.
func (r *Registry) SetParameter(ctx context.Context, instanceID, symbol string, value float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	inst, ok := r.instances[instanceID]
	if !ok {
		return fmt.Errorf("set_parameter: unknown instance %q", instanceID)
	}
	cmd := fmt.Sprintf("param_set %s %s %s", instanceID, symbol, formatFloat(value))
	if _, err := r.host.Send(ctx, cmd, r.timeout); err != nil {
		return fmt.Errorf("set_parameter: %w", err)
	}
	inst.Parameters[symbol] = value
	r.publish("parameter_changed", map[string]interface{}{
		"instance_id": instanceID, "symbol": symbol, "value": value,
	})
	return nil
}

// GetParameter attempts a live param_get, falling back to the mirror on any
// transport or parse failure.
func (r *Registry) GetParameter(ctx context.Context, instanceID, symbol string) (float64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	inst, ok := r.instances[instanceID]
	if !ok {
		return 0, fmt.Errorf("get_parameter: unknown instance %q", instanceID)
	}

	resp, err := r.host.Send(ctx, fmt.Sprintf("param_get %s %s", instanceID, symbol), r.timeout)
	if err == nil {
		if v, perr := parseRespFloat(resp); perr == nil {
			return v, nil
		}
	}
	v, ok := inst.Parameters[symbol]
	if !ok {
		return 0, fmt.Errorf("get_parameter: no mirrored value for %s on %s", symbol, instanceID)
	}
	return v, nil
}

// ListInstances returns a consistent snapshot of all loaded instances.
func (r *Registry) ListInstances() []Instance {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Instance, 0, len(r.instances))
	for _, inst := range r.instances {
		out = append(out, cloneInstance(inst))
	}
	return out
}

// GetPluginInfo returns a snapshot of one loaded instance.
func (r *Registry) GetPluginInfo(instanceID string) (Instance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	inst, ok := r.instances[instanceID]
	if !ok {
		return Instance{}, fmt.Errorf("get_plugin_info: unknown instance %q", instanceID)
	}
	return cloneInstance(inst), nil
}

// ClearAll unloads every instance, best-effort, and reports how many were
// removed.
func (r *Registry) ClearAll(ctx context.Context) int {
	r.mu.Lock()
	ids := make([]string, 0, len(r.instances))
	for id := range r.instances {
		ids = append(ids, id)
	}
	r.mu.Unlock()

	removed := 0
	for _, id := range ids {
		if err := r.UnloadPlugin(ctx, id); err == nil {
			removed++
		}
	}
	return removed
}

// GetAvailablePlugins returns the current scan result.
func (r *Registry) GetAvailablePlugins() map[string]catalog.Info {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]catalog.Info, len(r.available))
	for k, v := range r.available {
		out[k] = v
	}
	return out
}

// Search filters available plugins by query/criteria.
func (r *Registry) Search(query string, criteria catalog.SearchCriteria) []catalog.Info {
	r.mu.Lock()
	infos := make([]catalog.Info, 0, len(r.available))
	for _, info := range r.available {
		infos = append(infos, info)
	}
	r.mu.Unlock()
	return catalog.Search(infos, query, criteria)
}

// Rescan re-runs the catalog scan and emits plugins_rescanned.
func (r *Registry) Rescan() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	scanned, err := r.catalog.Scan()
	if err != nil {
		return fmt.Errorf("rescan: %w", err)
	}
	r.available = scanned
	r.publish("plugins_rescanned", map[string]int{"count": len(scanned)})
	return nil
}

// LoadPreset applies a stored preset to a loaded instance via mod-host's
// patch protocol.
func (r *Registry) LoadPreset(ctx context.Context, instanceID, presetURI string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.instances[instanceID]; !ok {
		return fmt.Errorf("load_preset: unknown instance %q", instanceID)
	}
	if _, err := r.host.Send(ctx, fmt.Sprintf("preset_load %s %s", instanceID, presetURI), r.timeout); err != nil {
		return fmt.Errorf("load_preset: %w", err)
	}
	r.instances[instanceID].Preset = presetURI
	return nil
}

// SavePreset asks mod-host to persist the instance's current parameter
// state under name, returning the resulting preset URI.
func (r *Registry) SavePreset(ctx context.Context, instanceID, name string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.instances[instanceID]; !ok {
		return "", fmt.Errorf("save_preset: unknown instance %q", instanceID)
	}
	resp, err := r.host.Send(ctx, fmt.Sprintf("preset_save %s %s", instanceID, name), r.timeout)
	if err != nil {
		return "", fmt.Errorf("save_preset: %w", err)
	}
	return strings.TrimPrefix(strings.TrimSpace(resp), "resp "), nil
}

func (r *Registry) Presets(uri string) ([]catalog.Preset, error)   { return r.catalog.Presets(uri) }
func (r *Registry) ValidatePreset(uri, preset string) (bool, error) { return r.catalog.ValidatePreset(uri, preset) }
func (r *Registry) RescanPresets(uri string) ([]catalog.Preset, error) {
	return r.catalog.RescanPresets(uri)
}
func (r *Registry) GUI(uri string) (*catalog.GUI, error)         { return r.catalog.GUI(uri) }
func (r *Registry) GUIMini(uri string) (*catalog.GUI, error)     { return r.catalog.GUIMini(uri) }
func (r *Registry) Essentials(uri string) (*catalog.Info, error) { return r.catalog.Essentials(uri) }
func (r *Registry) BundleLoaded(path string) (bool, error)       { return r.catalog.BundleLoaded(path) }
func (r *Registry) AddBundle(path string) ([]string, error)      { return r.catalog.AddBundle(path) }
func (r *Registry) RemoveBundle(path, resourcePath string) ([]string, error) {
	return r.catalog.RemoveBundle(path, resourcePath)
}
func (r *Registry) ListPluginsInBundle(path string) ([]string, error) {
	return r.catalog.ListPluginsInBundle(path)
}

func (r *Registry) publish(eventType string, data interface{}) {
	if r.events == nil {
		return
	}
	if err := r.events.PublishEvent(eventType, data); err != nil {
		r.warn("publish %s failed: %v", eventType, err)
	}
}

func (r *Registry) warn(format string, args ...interface{}) {
	if r.warnFunc != nil {
		r.warnFunc(format, args...)
	}
}

func cloneInstance(inst *Instance) Instance {
	out := *inst
	out.Parameters = make(map[string]float64, len(inst.Parameters))
	for k, v := range inst.Parameters {
		out.Parameters[k] = v
	}
	return out
}

func newInstanceID(ordinal int) string {
	suffix := strings.ReplaceAll(uuid.New().String(), "-", "")[:8]
	return fmt.Sprintf("plugin_%d_%s", ordinal, suffix)
}

func parseRespInt(resp string) (int, error) {
	fields := strings.Fields(resp)
	if len(fields) != 2 || fields[0] != "resp" {
		return 0, fmt.Errorf("unexpected mod-host reply %q", resp)
	}
	return strconv.Atoi(fields[1])
}

func parseRespFloat(resp string) (float64, error) {
	fields := strings.Fields(resp)
	if len(fields) == 0 {
		return 0, fmt.Errorf("empty mod-host reply")
	}
	return strconv.ParseFloat(fields[len(fields)-1], 64)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
