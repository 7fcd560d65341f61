// Package stub provides placeholder Discovery/System backends so the
// bridge binary links and boots without the real external LV2 scanner or
// JACK-like audio library wired in. Replace both at the integration point
// in cmd/modhost-bridge/main.go once those libraries are available.
package stub

import (
	"fmt"

	"github.com/shaban/modhost-bridge/audiosystem"
	"github.com/shaban/modhost-bridge/catalog"
)

// NoopDiscovery implements catalog.Discovery with an empty plugin set.
type NoopDiscovery struct{}

func (NoopDiscovery) Scan() (map[string]catalog.Info, error) {
	return map[string]catalog.Info{}, nil
}

func (NoopDiscovery) Detail(uri string) (*catalog.Info, error) {
	return nil, fmt.Errorf("stub discovery: no detail for %q", uri)
}

func (NoopDiscovery) GUI(uri string) (*catalog.GUI, error) {
	return nil, fmt.Errorf("stub discovery: no gui for %q", uri)
}

func (NoopDiscovery) GUIMini(uri string) (*catalog.GUI, error) {
	return nil, fmt.Errorf("stub discovery: no gui for %q", uri)
}

func (NoopDiscovery) Essentials(uri string) (*catalog.Info, error) {
	return nil, fmt.Errorf("stub discovery: no essentials for %q", uri)
}

func (NoopDiscovery) Presets(uri string) ([]catalog.Preset, error) {
	return nil, nil
}

func (NoopDiscovery) ValidatePreset(uri, presetURI string) (bool, error) {
	return false, fmt.Errorf("stub discovery: cannot validate %q", presetURI)
}

func (NoopDiscovery) RescanPresets(uri string) ([]catalog.Preset, error) {
	return nil, nil
}

func (NoopDiscovery) BundleLoaded(path string) (bool, error) {
	return false, nil
}

func (NoopDiscovery) AddBundle(path string) ([]string, error) {
	return nil, fmt.Errorf("stub discovery: cannot add bundle %q", path)
}

func (NoopDiscovery) RemoveBundle(path, resourcePath string) ([]string, error) {
	return nil, fmt.Errorf("stub discovery: cannot remove bundle %q", path)
}

func (NoopDiscovery) ListPluginsInBundle(path string) ([]string, error) {
	return nil, nil
}

// NoopAudioSystem implements audiosystem.System without a real JACK-like
// backend. Init succeeds trivially; every query returns a zero value.
type NoopAudioSystem struct{}

func (NoopAudioSystem) InitJACK() error  { return nil }
func (NoopAudioSystem) CloseJACK() error { return nil }

func (NoopAudioSystem) GetJACKData(withTransport bool) (*audiosystem.Data, error) {
	return &audiosystem.Data{}, nil
}

func (NoopAudioSystem) GetJACKBufferSize() (int, error)  { return 256, nil }
func (NoopAudioSystem) SetJACKBufferSize(size int) error { return nil }
func (NoopAudioSystem) GetJACKSampleRate() (int, error)  { return 48000, nil }

func (NoopAudioSystem) GetJACKPortAlias(port string) (string, error) {
	return port, nil
}

func (NoopAudioSystem) GetJACKHardwarePorts(isAudio, isOutput bool) ([]string, error) {
	return nil, nil
}

func (NoopAudioSystem) HasMidiBeatClockSenderPort() (bool, error)  { return false, nil }
func (NoopAudioSystem) HasSerialMidiInputPort() (bool, error)      { return false, nil }
func (NoopAudioSystem) HasSerialMidiOutputPort() (bool, error)     { return false, nil }
func (NoopAudioSystem) HasMidiMergerOutputPort() (bool, error)     { return false, nil }
func (NoopAudioSystem) HasMidiBroadcasterInputPort() (bool, error) { return false, nil }
func (NoopAudioSystem) HasDuoXSplitSPDIF() (bool, error)           { return false, nil }

func (NoopAudioSystem) ConnectJACKPorts(a, b string) error           { return nil }
func (NoopAudioSystem) ConnectJACKMidiOutputPorts(a, b string) error { return nil }
func (NoopAudioSystem) DisconnectJACKPorts(a, b string) error        { return nil }
func (NoopAudioSystem) DisconnectAllJACKPorts(port string) error     { return nil }
func (NoopAudioSystem) ResetXruns() error                            { return nil }
