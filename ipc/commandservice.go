package ipc

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-zeromq/zmq4"

	"github.com/shaban/modhost-bridge/audiosystem"
	"github.com/shaban/modhost-bridge/catalog"
	"github.com/shaban/modhost-bridge/health"
	"github.com/shaban/modhost-bridge/registry"
)

// commander is the narrow surface CommandService needs for raw/structured
// commands forwarded straight to mod-host.
type commander interface {
	Send(ctx context.Context, command string, timeout time.Duration) (string, error)
}

// pluginOps is the narrow surface CommandService needs from registry.Registry
// for the 22 "action":"plugin" methods.
type pluginOps interface {
	LoadPlugin(ctx context.Context, uri string, x, y float64, initialParams map[string]float64) (*registry.Instance, error)
	UnloadPlugin(ctx context.Context, instanceID string) error
	SetParameter(ctx context.Context, instanceID, symbol string, value float64) error
	GetParameter(ctx context.Context, instanceID, symbol string) (float64, error)
	GetPluginInfo(instanceID string) (registry.Instance, error)
	ListInstances() []registry.Instance
	ClearAll(ctx context.Context) int
	GetAvailablePlugins() map[string]catalog.Info
	Search(query string, criteria catalog.SearchCriteria) []catalog.Info
	Rescan() error
	Presets(uri string) ([]catalog.Preset, error)
	LoadPreset(ctx context.Context, instanceID, presetURI string) error
	SavePreset(ctx context.Context, instanceID, name string) (string, error)
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

// audioOps is the narrow surface CommandService needs from audiosystem.Adapter
// for the "action":"audio" methods.
type audioOps interface {
	Init() error
	Close() error
	GetData(withTransport bool) (*audiosystem.Data, error)
	GetBufferSize() (int, error)
	SetBufferSize(size int) error
	GetSampleRate() (int, error)
	GetPortAlias(port string) (string, error)
	GetHardwarePorts(isAudio, isOutput bool) ([]string, error)
	HasMidiBeatClockSenderPort() (bool, error)
	HasSerialMidiInputPort() (bool, error)
	HasSerialMidiOutputPort() (bool, error)
	HasMidiMergerOutputPort() (bool, error)
	HasMidiBroadcasterInputPort() (bool, error)
	HasDuoXSplitSPDIF() (bool, error)
	ConnectPorts(a, b string) error
	ConnectMidiOutputPorts(a, b string) error
	DisconnectPorts(a, b string) error
	DisconnectAllPorts(port string) error
	ResetXruns() error
}

// CommandService binds a REP socket and dispatches JSON requests per §4.8:
// raw/structured commands forwarded to mod-host, and "plugin"/"audio"/
// "health" actions dispatched to the registry/audio adapter/health state.
type CommandService struct {
	sock      repSocket
	commander commander
	plugins   pluginOps
	audio     audioOps
	health    *health.State
	timeout   time.Duration
}

// NewCommandService binds a REP socket at addr.
func NewCommandService(ctx context.Context, addr string, cmd commander, plugins pluginOps, audio audioOps, h *health.State, timeout time.Duration) (*CommandService, error) {
	sock := zmq4.NewRep(ctx)
	if err := sock.Listen(addr); err != nil {
		return nil, fmt.Errorf("commandservice: listen %s: %w", addr, err)
	}
	return &CommandService{sock: sock, commander: cmd, plugins: plugins, audio: audio, health: h, timeout: timeout}, nil
}

// Run serves requests until ctx is cancelled.
func (s *CommandService) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return nil
		}
		req, err := s.sock.Recv()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			continue
		}
		resp := s.handle(ctx, req.Bytes())
		if err := s.sock.Send(zmq4.NewMsg(resp)); err != nil {
			continue
		}
	}
}

// Close releases the underlying socket.
func (s *CommandService) Close() error {
	return s.sock.Close()
}

// handle is the pure request dispatch logic, kept separate from socket I/O
// for testability. Any handler panic-equivalent (error) becomes {error:...};
// the socket always stays alive.
func (s *CommandService) handle(ctx context.Context, body []byte) []byte {
	var fields map[string]interface{}
	if err := json.Unmarshal(body, &fields); err != nil {
		return mustJSON(errorResponse("Invalid JSON"))
	}

	if action, ok := fields["action"].(string); ok {
		switch action {
		case "plugin":
			return s.handlePlugin(ctx, fields)
		case "audio":
			return s.handleAudio(fields)
		case "health":
			return mustJSON(s.health.Snapshot())
		default:
			return mustJSON(errorResponse("unknown action"))
		}
	}

	if cmd, ok := fields["command"].(string); ok {
		return s.forward(ctx, cmd)
	}
	if name, ok := fields["name"].(string); ok {
		args := stringSlice(fields["args"])
		cmd := name
		for _, a := range args {
			cmd += " " + a
		}
		return s.forward(ctx, cmd)
	}

	return mustJSON(errorResponse("unrecognized request shape"))
}

func (s *CommandService) forward(ctx context.Context, cmd string) []byte {
	raw, err := s.commander.Send(ctx, cmd, s.timeout)
	if err != nil {
		return mustJSON(errorResponse(err.Error()))
	}
	return mustJSON(map[string]string{"status": "ok", "raw": raw})
}

func (s *CommandService) handlePlugin(ctx context.Context, fields map[string]interface{}) []byte {
	method, _ := fields["method"].(string)
	switch method {
	case "load_plugin":
		uri := str(fields["uri"])
		x, y := num(fields["x"]), num(fields["y"])
		params := floatMap(fields["initial_params"])
		inst, err := s.plugins.LoadPlugin(ctx, uri, x, y, params)
		if err != nil {
			return mustJSON(errorResponse(err.Error()))
		}
		return mustJSON(map[string]interface{}{"instance_id": inst.InstanceID, "plugin": inst})

	case "unload_plugin":
		instanceID := str(fields["instance_id"])
		if err := s.plugins.UnloadPlugin(ctx, instanceID); err != nil {
			return mustJSON(errorResponse(err.Error()))
		}
		return mustJSON(map[string]string{"status": "ok", "instance_id": instanceID})

	case "set_parameter":
		value := num(fields["value"])
		err := s.plugins.SetParameter(ctx, str(fields["instance_id"]), str(fields["symbol"]), value)
		if err != nil {
			return mustJSON(errorResponse(err.Error()))
		}
		return mustJSON(map[string]interface{}{"status": "ok", "value": value})

	case "get_parameter":
		v, err := s.plugins.GetParameter(ctx, str(fields["instance_id"]), str(fields["symbol"]))
		if err != nil {
			return mustJSON(errorResponse(err.Error()))
		}
		return mustJSON(map[string]float64{"value": v})

	case "get_plugin_info":
		inst, err := s.plugins.GetPluginInfo(str(fields["instance_id"]))
		if err != nil {
			return mustJSON(errorResponse(err.Error()))
		}
		return mustJSON(inst)

	case "list_instances":
		return mustJSON(s.plugins.ListInstances())

	case "clear_all":
		return mustJSON(map[string]int{"removed": s.plugins.ClearAll(ctx)})

	case "get_available_plugins":
		return mustJSON(s.plugins.GetAvailablePlugins())

	case "search_plugins":
		criteria := catalog.SearchCriteria{
			Category:        str(fields["category"]),
			Author:          str(fields["author"]),
			MinAudioInputs:  int(num(fields["min_audio_inputs"])),
			MinAudioOutputs: int(num(fields["min_audio_outputs"])),
			MaxAudioInputs:  int(num(fields["max_audio_inputs"])),
			MaxAudioOutputs: int(num(fields["max_audio_outputs"])),
		}
		return mustJSON(s.plugins.Search(str(fields["query"]), criteria))

	case "get_plugin_presets":
		presets, err := s.plugins.Presets(str(fields["uri"]))
		if err != nil {
			return mustJSON(errorResponse(err.Error()))
		}
		return mustJSON(presets)

	case "load_preset":
		err := s.plugins.LoadPreset(ctx, str(fields["instance_id"]), str(fields["preset_uri"]))
		if err != nil {
			return mustJSON(errorResponse(err.Error()))
		}
		return mustJSON(map[string]bool{"success": true})

	case "save_preset":
		uri, err := s.plugins.SavePreset(ctx, str(fields["instance_id"]), str(fields["name"]))
		if err != nil {
			return mustJSON(errorResponse(err.Error()))
		}
		return mustJSON(map[string]string{"preset_uri": uri})

	case "rescan_plugins":
		if err := s.plugins.Rescan(); err != nil {
			return mustJSON(errorResponse(err.Error()))
		}
		return mustJSON(map[string]bool{"success": true})

	case "validate_preset":
		ok, err := s.plugins.ValidatePreset(str(fields["uri"]), str(fields["preset_uri"]))
		if err != nil {
			return mustJSON(errorResponse(err.Error()))
		}
		return mustJSON(map[string]bool{"valid": ok})

	case "rescan_presets":
		presets, err := s.plugins.RescanPresets(str(fields["uri"]))
		if err != nil {
			return mustJSON(errorResponse(err.Error()))
		}
		return mustJSON(presets)

	case "get_plugin_gui":
		gui, err := s.plugins.GUI(str(fields["uri"]))
		if err != nil {
			return mustJSON(errorResponse(err.Error()))
		}
		return mustJSON(gui)

	case "get_plugin_gui_mini":
		gui, err := s.plugins.GUIMini(str(fields["uri"]))
		if err != nil {
			return mustJSON(errorResponse(err.Error()))
		}
		return mustJSON(gui)

	case "get_plugin_essentials":
		info, err := s.plugins.Essentials(str(fields["uri"]))
		if err != nil {
			return mustJSON(errorResponse(err.Error()))
		}
		return mustJSON(info)

	case "is_bundle_loaded":
		loaded, err := s.plugins.BundleLoaded(str(fields["path"]))
		if err != nil {
			return mustJSON(errorResponse(err.Error()))
		}
		return mustJSON(map[string]bool{"loaded": loaded})

	case "add_bundle":
		uris, err := s.plugins.AddBundle(str(fields["path"]))
		if err != nil {
			return mustJSON(errorResponse(err.Error()))
		}
		return mustJSON(uris)

	case "remove_bundle":
		uris, err := s.plugins.RemoveBundle(str(fields["path"]), str(fields["resource_path"]))
		if err != nil {
			return mustJSON(errorResponse(err.Error()))
		}
		return mustJSON(uris)

	case "list_bundle_plugins":
		uris, err := s.plugins.ListPluginsInBundle(str(fields["path"]))
		if err != nil {
			return mustJSON(errorResponse(err.Error()))
		}
		return mustJSON(uris)

	default:
		return mustJSON(errorResponse("unknown method"))
	}
}

func (s *CommandService) handleAudio(fields map[string]interface{}) []byte {
	method, _ := fields["method"].(string)
	switch method {
	case "init_jack":
		if err := s.audio.Init(); err != nil {
			return mustJSON(errorResponse(err.Error()))
		}
		return mustJSON(map[string]bool{"success": true})
	case "close_jack":
		if err := s.audio.Close(); err != nil {
			return mustJSON(errorResponse(err.Error()))
		}
		return mustJSON(map[string]bool{"success": true})
	case "get_jack_data":
		data, err := s.audio.GetData(boolField(fields["with_transport"]))
		if err != nil {
			return mustJSON(errorResponse(err.Error()))
		}
		return mustJSON(data)
	case "get_jack_buffer_size":
		size, err := s.audio.GetBufferSize()
		if err != nil {
			return mustJSON(errorResponse(err.Error()))
		}
		return mustJSON(map[string]int{"buffer_size": size})
	case "set_jack_buffer_size":
		if err := s.audio.SetBufferSize(int(num(fields["size"]))); err != nil {
			return mustJSON(errorResponse(err.Error()))
		}
		return mustJSON(map[string]bool{"success": true})
	case "get_jack_sample_rate":
		rate, err := s.audio.GetSampleRate()
		if err != nil {
			return mustJSON(errorResponse(err.Error()))
		}
		return mustJSON(map[string]int{"sample_rate": rate})
	case "get_jack_port_alias":
		alias, err := s.audio.GetPortAlias(str(fields["port"]))
		if err != nil {
			return mustJSON(errorResponse(err.Error()))
		}
		return mustJSON(map[string]string{"alias": alias})
	case "get_jack_hardware_ports":
		ports, err := s.audio.GetHardwarePorts(boolField(fields["is_audio"]), boolField(fields["is_output"]))
		if err != nil {
			return mustJSON(errorResponse(err.Error()))
		}
		return mustJSON(ports)
	case "has_midi_beat_clock_sender_port":
		return s.boolAudioResult(s.audio.HasMidiBeatClockSenderPort())
	case "has_serial_midi_input_port":
		return s.boolAudioResult(s.audio.HasSerialMidiInputPort())
	case "has_serial_midi_output_port":
		return s.boolAudioResult(s.audio.HasSerialMidiOutputPort())
	case "has_midi_merger_output_port":
		return s.boolAudioResult(s.audio.HasMidiMergerOutputPort())
	case "has_midi_broadcaster_input_port":
		return s.boolAudioResult(s.audio.HasMidiBroadcasterInputPort())
	case "has_duox_split_spdif":
		return s.boolAudioResult(s.audio.HasDuoXSplitSPDIF())
	case "connect_jack_ports":
		if err := s.audio.ConnectPorts(str(fields["a"]), str(fields["b"])); err != nil {
			return mustJSON(errorResponse(err.Error()))
		}
		return mustJSON(map[string]bool{"success": true})
	case "connect_jack_midi_output_ports":
		if err := s.audio.ConnectMidiOutputPorts(str(fields["a"]), str(fields["b"])); err != nil {
			return mustJSON(errorResponse(err.Error()))
		}
		return mustJSON(map[string]bool{"success": true})
	case "disconnect_jack_ports":
		if err := s.audio.DisconnectPorts(str(fields["a"]), str(fields["b"])); err != nil {
			return mustJSON(errorResponse(err.Error()))
		}
		return mustJSON(map[string]bool{"success": true})
	case "disconnect_all_jack_ports":
		if err := s.audio.DisconnectAllPorts(str(fields["port"])); err != nil {
			return mustJSON(errorResponse(err.Error()))
		}
		return mustJSON(map[string]bool{"success": true})
	case "reset_xruns":
		if err := s.audio.ResetXruns(); err != nil {
			return mustJSON(errorResponse(err.Error()))
		}
		return mustJSON(map[string]bool{"success": true})
	default:
		return mustJSON(errorResponse("unknown method"))
	}
}

func (s *CommandService) boolAudioResult(v bool, err error) []byte {
	if err != nil {
		return mustJSON(errorResponse(err.Error()))
	}
	return mustJSON(map[string]bool{"value": v})
}

func str(v interface{}) string {
	s, _ := v.(string)
	return s
}

func num(v interface{}) float64 {
	f, _ := v.(float64)
	return f
}

func boolField(v interface{}) bool {
	b, _ := v.(bool)
	return b
}

func stringSlice(v interface{}) []string {
	arr, ok := v.([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(arr))
	for _, item := range arr {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func floatMap(v interface{}) map[string]float64 {
	raw, ok := v.(map[string]interface{})
	if !ok {
		return nil
	}
	out := make(map[string]float64, len(raw))
	for k, val := range raw {
		if f, ok := val.(float64); ok {
			out[k] = f
		}
	}
	return out
}
