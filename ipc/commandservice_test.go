package ipc

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/shaban/modhost-bridge/audiosystem"
	"github.com/shaban/modhost-bridge/catalog"
	"github.com/shaban/modhost-bridge/health"
	"github.com/shaban/modhost-bridge/registry"
)

type fakeCommander struct {
	lastCmd string
	resp    string
	err     error
}

func (f *fakeCommander) Send(ctx context.Context, command string, timeout time.Duration) (string, error) {
	f.lastCmd = command
	if f.err != nil {
		return "", f.err
	}
	return f.resp, nil
}

type fakePluginOps struct {
	loaded *registry.Instance
	err    error

	lastInstanceID string
	lastSymbol     string
	lastValue      float64

	available map[string]catalog.Info
	searched  []catalog.Info

	presetURI string
}

func (f *fakePluginOps) LoadPlugin(ctx context.Context, uri string, x, y float64, p map[string]float64) (*registry.Instance, error) {
	return f.loaded, f.err
}
func (f *fakePluginOps) UnloadPlugin(ctx context.Context, instanceID string) error {
	f.lastInstanceID = instanceID
	return f.err
}
func (f *fakePluginOps) SetParameter(ctx context.Context, instanceID, symbol string, value float64) error {
	f.lastInstanceID, f.lastSymbol, f.lastValue = instanceID, symbol, value
	return f.err
}
func (f *fakePluginOps) GetParameter(ctx context.Context, instanceID, symbol string) (float64, error) {
	return f.lastValue, f.err
}
func (f *fakePluginOps) GetPluginInfo(instanceID string) (registry.Instance, error) {
	if f.loaded == nil {
		return registry.Instance{}, f.err
	}
	return *f.loaded, f.err
}
func (f *fakePluginOps) ListInstances() []registry.Instance { return nil }
func (f *fakePluginOps) ClearAll(ctx context.Context) int    { return 2 }
func (f *fakePluginOps) GetAvailablePlugins() map[string]catalog.Info {
	return f.available
}
func (f *fakePluginOps) Search(query string, criteria catalog.SearchCriteria) []catalog.Info {
	return f.searched
}
func (f *fakePluginOps) Rescan() error { return f.err }
func (f *fakePluginOps) Presets(uri string) ([]catalog.Preset, error) {
	return []catalog.Preset{{URI: uri + "#preset1", Label: "Preset 1"}}, f.err
}
func (f *fakePluginOps) LoadPreset(ctx context.Context, instanceID, presetURI string) error {
	f.lastInstanceID = instanceID
	return f.err
}
func (f *fakePluginOps) SavePreset(ctx context.Context, instanceID, name string) (string, error) {
	return f.presetURI, f.err
}
func (f *fakePluginOps) ValidatePreset(uri, presetURI string) (bool, error) { return true, f.err }
func (f *fakePluginOps) RescanPresets(uri string) ([]catalog.Preset, error) {
	return nil, f.err
}
func (f *fakePluginOps) GUI(uri string) (*catalog.GUI, error)         { return &catalog.GUI{}, f.err }
func (f *fakePluginOps) GUIMini(uri string) (*catalog.GUI, error)     { return &catalog.GUI{}, f.err }
func (f *fakePluginOps) Essentials(uri string) (*catalog.Info, error) { return &catalog.Info{}, f.err }
func (f *fakePluginOps) BundleLoaded(path string) (bool, error)       { return true, f.err }
func (f *fakePluginOps) AddBundle(path string) ([]string, error)      { return []string{"uri1"}, f.err }
func (f *fakePluginOps) RemoveBundle(path, resourcePath string) ([]string, error) {
	return []string{"uri1"}, f.err
}
func (f *fakePluginOps) ListPluginsInBundle(path string) ([]string, error) {
	return []string{"uri1"}, f.err
}

type fakeAudioOps struct {
	err  error
	data *audiosystem.Data
}

func (f *fakeAudioOps) Init() error  { return f.err }
func (f *fakeAudioOps) Close() error { return f.err }
func (f *fakeAudioOps) GetData(withTransport bool) (*audiosystem.Data, error) {
	return f.data, f.err
}
func (f *fakeAudioOps) GetBufferSize() (int, error)     { return 256, f.err }
func (f *fakeAudioOps) SetBufferSize(size int) error    { return f.err }
func (f *fakeAudioOps) GetSampleRate() (int, error)      { return 48000, f.err }
func (f *fakeAudioOps) GetPortAlias(port string) (string, error) { return "alias", f.err }
func (f *fakeAudioOps) GetHardwarePorts(isAudio, isOutput bool) ([]string, error) {
	return []string{"system:playback_1"}, f.err
}
func (f *fakeAudioOps) HasMidiBeatClockSenderPort() (bool, error)      { return true, f.err }
func (f *fakeAudioOps) HasSerialMidiInputPort() (bool, error)          { return false, f.err }
func (f *fakeAudioOps) HasSerialMidiOutputPort() (bool, error)         { return false, f.err }
func (f *fakeAudioOps) HasMidiMergerOutputPort() (bool, error)         { return false, f.err }
func (f *fakeAudioOps) HasMidiBroadcasterInputPort() (bool, error)     { return false, f.err }
func (f *fakeAudioOps) HasDuoXSplitSPDIF() (bool, error)               { return false, f.err }
func (f *fakeAudioOps) ConnectPorts(a, b string) error                 { return f.err }
func (f *fakeAudioOps) ConnectMidiOutputPorts(a, b string) error       { return f.err }
func (f *fakeAudioOps) DisconnectPorts(a, b string) error              { return f.err }
func (f *fakeAudioOps) DisconnectAllPorts(port string) error           { return f.err }
func (f *fakeAudioOps) ResetXruns() error                              { return f.err }

func decodeMap(t *testing.T, body []byte) map[string]interface{} {
	t.Helper()
	var m map[string]interface{}
	if err := json.Unmarshal(body, &m); err != nil {
		t.Fatalf("unmarshal response: %v (body=%s)", err, body)
	}
	return m
}

func TestHandleRawCommand(t *testing.T) {
	cmd := &fakeCommander{resp: "resp 0"}
	s := &CommandService{commander: cmd, timeout: time.Second}

	resp := s.handle(context.Background(), []byte(`{"command":"add http://example.org/plugin 0"}`))
	got := decodeMap(t, resp)
	if got["status"] != "ok" || got["raw"] != "resp 0" {
		t.Fatalf("unexpected response: %v", got)
	}
	if cmd.lastCmd != "add http://example.org/plugin 0" {
		t.Fatalf("lastCmd = %q", cmd.lastCmd)
	}
}

func TestHandleStructuredCommand(t *testing.T) {
	cmd := &fakeCommander{resp: "resp true"}
	s := &CommandService{commander: cmd, timeout: time.Second}

	resp := s.handle(context.Background(), []byte(`{"name":"bypass","args":["1","1"]}`))
	got := decodeMap(t, resp)
	if got["status"] != "ok" {
		t.Fatalf("unexpected response: %v", got)
	}
	if cmd.lastCmd != "bypass 1 1" {
		t.Fatalf("lastCmd = %q", cmd.lastCmd)
	}
}

func TestHandleRawCommandError(t *testing.T) {
	cmd := &fakeCommander{err: errors.New("connect refused")}
	s := &CommandService{commander: cmd, timeout: time.Second}

	resp := s.handle(context.Background(), []byte(`{"command":"add x 0"}`))
	got := decodeMap(t, resp)
	if got["error"] == nil {
		t.Fatalf("expected error field, got %v", got)
	}
}

func TestHandleMalformedJSONCommandService(t *testing.T) {
	s := &CommandService{}
	resp := s.handle(context.Background(), []byte(`not json`))
	got := decodeMap(t, resp)
	if got["error"] != "Invalid JSON" {
		t.Fatalf("unexpected response: %v", got)
	}
}

func TestHandleUnknownAction(t *testing.T) {
	s := &CommandService{}
	resp := s.handle(context.Background(), []byte(`{"action":"bogus"}`))
	got := decodeMap(t, resp)
	if got["error"] != "unknown action" {
		t.Fatalf("unexpected response: %v", got)
	}
}

func TestHandlePluginLoad(t *testing.T) {
	inst := &registry.Instance{InstanceID: "plugin_1_abcd1234", URI: "http://example.org/plugin"}
	plugins := &fakePluginOps{loaded: inst}
	s := &CommandService{plugins: plugins}

	resp := s.handle(context.Background(), []byte(`{"action":"plugin","method":"load_plugin","uri":"http://example.org/plugin","x":1.5,"y":2.5}`))
	var got struct {
		InstanceID string            `json:"instance_id"`
		Plugin     registry.Instance `json:"plugin"`
	}
	if err := json.Unmarshal(resp, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.InstanceID != "plugin_1_abcd1234" {
		t.Fatalf("InstanceID = %q", got.InstanceID)
	}
	if got.Plugin.InstanceID != "plugin_1_abcd1234" || got.Plugin.URI != "http://example.org/plugin" {
		t.Fatalf("Plugin = %+v", got.Plugin)
	}
}

func TestHandlePluginLoadError(t *testing.T) {
	plugins := &fakePluginOps{err: errors.New("unknown uri")}
	s := &CommandService{plugins: plugins}

	resp := s.handle(context.Background(), []byte(`{"action":"plugin","method":"load_plugin","uri":"bogus"}`))
	got := decodeMap(t, resp)
	if got["error"] == nil {
		t.Fatalf("expected error, got %v", got)
	}
}

func TestHandlePluginSetParameter(t *testing.T) {
	plugins := &fakePluginOps{}
	s := &CommandService{plugins: plugins}

	resp := s.handle(context.Background(), []byte(`{"action":"plugin","method":"set_parameter","instance_id":"plugin_1_x","symbol":"gain","value":0.75}`))
	got := decodeMap(t, resp)
	if got["status"] != "ok" || got["value"] != 0.75 {
		t.Fatalf("unexpected response: %v", got)
	}
	if plugins.lastInstanceID != "plugin_1_x" || plugins.lastSymbol != "gain" || plugins.lastValue != 0.75 {
		t.Fatalf("unexpected call args: %+v", plugins)
	}
}

func TestHandlePluginUnload(t *testing.T) {
	plugins := &fakePluginOps{}
	s := &CommandService{plugins: plugins}

	resp := s.handle(context.Background(), []byte(`{"action":"plugin","method":"unload_plugin","instance_id":"plugin_1_x"}`))
	got := decodeMap(t, resp)
	if got["status"] != "ok" || got["instance_id"] != "plugin_1_x" {
		t.Fatalf("unexpected response: %v", got)
	}
	if plugins.lastInstanceID != "plugin_1_x" {
		t.Fatalf("lastInstanceID = %q", plugins.lastInstanceID)
	}
}

func TestHandlePluginSearch(t *testing.T) {
	plugins := &fakePluginOps{searched: []catalog.Info{{URI: "http://example.org/a"}}}
	s := &CommandService{plugins: plugins}

	resp := s.handle(context.Background(), []byte(`{"action":"plugin","method":"search_plugins","query":"reverb","min_audio_inputs":2}`))
	var got []catalog.Info
	if err := json.Unmarshal(resp, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(got) != 1 || got[0].URI != "http://example.org/a" {
		t.Fatalf("unexpected response: %+v", got)
	}
}

func TestHandlePluginSavePreset(t *testing.T) {
	plugins := &fakePluginOps{presetURI: "http://example.org/plugin#mypreset"}
	s := &CommandService{plugins: plugins}

	resp := s.handle(context.Background(), []byte(`{"action":"plugin","method":"save_preset","instance_id":"plugin_1_x","name":"My Preset"}`))
	got := decodeMap(t, resp)
	if got["preset_uri"] != "http://example.org/plugin#mypreset" {
		t.Fatalf("unexpected response: %v", got)
	}
}

func TestHandlePluginUnknownMethod(t *testing.T) {
	plugins := &fakePluginOps{}
	s := &CommandService{plugins: plugins}
	resp := s.handle(context.Background(), []byte(`{"action":"plugin","method":"bogus"}`))
	got := decodeMap(t, resp)
	if got["error"] != "unknown method" {
		t.Fatalf("unexpected response: %v", got)
	}
}

func TestHandleAudioGetBufferSize(t *testing.T) {
	audio := &fakeAudioOps{}
	s := &CommandService{audio: audio}

	resp := s.handle(context.Background(), []byte(`{"action":"audio","method":"get_jack_buffer_size"}`))
	got := decodeMap(t, resp)
	if got["buffer_size"] != float64(256) {
		t.Fatalf("unexpected response: %v", got)
	}
}

func TestHandleAudioConnectPorts(t *testing.T) {
	audio := &fakeAudioOps{}
	s := &CommandService{audio: audio}

	resp := s.handle(context.Background(), []byte(`{"action":"audio","method":"connect_jack_ports","a":"system:capture_1","b":"effect_1:in"}`))
	got := decodeMap(t, resp)
	if got["success"] != true {
		t.Fatalf("unexpected response: %v", got)
	}
}

func TestHandleAudioHasMidiBeatClockSenderPort(t *testing.T) {
	audio := &fakeAudioOps{}
	s := &CommandService{audio: audio}

	resp := s.handle(context.Background(), []byte(`{"action":"audio","method":"has_midi_beat_clock_sender_port"}`))
	got := decodeMap(t, resp)
	if got["value"] != true {
		t.Fatalf("unexpected response: %v", got)
	}
}

func TestHandleAudioError(t *testing.T) {
	audio := &fakeAudioOps{err: errors.New("not initialized")}
	s := &CommandService{audio: audio}

	resp := s.handle(context.Background(), []byte(`{"action":"audio","method":"get_jack_sample_rate"}`))
	got := decodeMap(t, resp)
	if got["error"] == nil {
		t.Fatalf("expected error, got %v", got)
	}
}

func TestHandleAudioUnknownMethod(t *testing.T) {
	audio := &fakeAudioOps{}
	s := &CommandService{audio: audio}
	resp := s.handle(context.Background(), []byte(`{"action":"audio","method":"bogus"}`))
	got := decodeMap(t, resp)
	if got["error"] != "unknown method" {
		t.Fatalf("unexpected response: %v", got)
	}
}

func TestHandleHealthAction(t *testing.T) {
	h := health.New(nil)
	s := &CommandService{health: h}

	resp := s.handle(context.Background(), []byte(`{"action":"health"}`))
	got := decodeMap(t, resp)
	if got["status"] != "starting" {
		t.Fatalf("unexpected response: %v", got)
	}
}

func TestHandleUnrecognizedShape(t *testing.T) {
	s := &CommandService{}
	resp := s.handle(context.Background(), []byte(`{"foo":"bar"}`))
	got := decodeMap(t, resp)
	if got["error"] != "unrecognized request shape" {
		t.Fatalf("unexpected response: %v", got)
	}
}
