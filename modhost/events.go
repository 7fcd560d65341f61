// Package modhost implements the two TCP protocols mod-host exposes: the
// short-lived command socket and the long-lived, NUL-delimited feedback
// socket.
package modhost

// EventKind tags the 13 feedback record variants. The registry's lifecycle
// events are published under plain string types and have no EventKind.
type EventKind string

const (
	EventParamSet          EventKind = "param_set"
	EventAudioMonitor      EventKind = "audio_monitor"
	EventOutputSet         EventKind = "output_set"
	EventMidiMapped        EventKind = "midi_mapped"
	EventMidiControlChange EventKind = "midi_control_change"
	EventMidiProgramChange EventKind = "midi_program_change"
	EventTransport         EventKind = "transport"
	EventPatchSet          EventKind = "patch_set"
	EventLog               EventKind = "log"
	EventCPULoad           EventKind = "cpu_load"
	EventDataFinish        EventKind = "data_finish"
	EventCCMap             EventKind = "cc_map"
	EventUnknown           EventKind = "unknown"
)

// Event is the tagged variant produced by Parse. Data holds one of the
// payload structs below, selected by Kind — the same interface{}-plus-switch
// idiom the dispatcher in the teacher engine uses for its operation data.
type Event struct {
	Kind EventKind   `json:"type"`
	Data interface{} `json:"data"`
}

type ParamSet struct {
	EffectID uint32  `json:"effect_id"`
	Symbol   string  `json:"symbol"`
	Value    float64 `json:"value"`
}

type AudioMonitor struct {
	Index uint32  `json:"index"`
	Value float64 `json:"value"`
}

type OutputSet struct {
	EffectID uint32  `json:"effect_id"`
	Symbol   string  `json:"symbol"`
	Value    float64 `json:"value"`
}

type MidiMapped struct {
	EffectID   uint32 `json:"effect_id"`
	Symbol     string `json:"symbol"`
	Channel    uint32 `json:"channel"`
	Controller uint32 `json:"controller"`
}

// MidiControlChange carries a validated MIDI CC event. RawBytes holds the
// wire-format bytes produced by gomidi/midi's Channel.ControlChange, giving
// the taxonomy a real MIDI encoding instead of bare integers.
type MidiControlChange struct {
	Channel  uint32 `json:"channel"`
	Control  uint32 `json:"control"`
	Value    uint32 `json:"value"`
	RawBytes []byte `json:"raw_bytes,omitempty"`
}

type MidiProgramChange struct {
	Program  uint32 `json:"program"`
	Channel  uint32 `json:"channel"`
	RawBytes []byte `json:"raw_bytes,omitempty"`
}

type Transport struct {
	Rolling bool    `json:"rolling"`
	BPB     float64 `json:"bpb"`
	BPM     float64 `json:"bpm"`
}

type PatchSet struct {
	Instance uint32 `json:"instance"`
	Symbol   string `json:"symbol"`
	RawValue string `json:"raw_value"`
}

type Log struct {
	Level   uint32 `json:"level"`
	Message string `json:"message"`
}

type CPULoad struct {
	Load    float64 `json:"load"`
	MaxLoad float64 `json:"max_load"`
	Xruns   uint32  `json:"xruns"`
}

type DataFinish struct{}

type CCMap struct {
	Raw string `json:"raw"`
}

type Unknown struct {
	Raw string `json:"raw"`
}
