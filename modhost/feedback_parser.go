package modhost

import (
	"strconv"
	"strings"

	"gitlab.com/gomidi/midi/v2"
)

// Parse turns one NUL-terminated feedback record (already stripped of its
// terminator) into a tagged Event. It never fails: anything it cannot
// recognize becomes an EventUnknown carrying the original line.
func Parse(line string) Event {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return unknownEvent(line)
	}

	switch fields[0] {
	case "param_set":
		return parseParamSet(fields, line)
	case "audio_monitor":
		return parseAudioMonitor(fields, line)
	case "output_set":
		return parseOutputSet(fields, line)
	case "midi_mapped":
		return parseMidiMapped(fields, line)
	case "midi_control_change":
		return parseMidiControlChange(fields, line)
	case "midi_program_change":
		return parseMidiProgramChange(fields, line)
	case "transport":
		return parseTransport(fields, line)
	case "patch_set":
		return parsePatchSet(line)
	case "log":
		return parseLog(line)
	case "cpu_load":
		return parseCPULoad(fields, line)
	case "data_finish":
		if len(fields) != 1 {
			return unknownEvent(line)
		}
		return Event{Kind: EventDataFinish, Data: DataFinish{}}
	case "cc_map":
		return Event{Kind: EventCCMap, Data: CCMap{Raw: restAfter(line, 1)}}
	default:
		return unknownEvent(line)
	}
}

func unknownEvent(line string) Event {
	return Event{Kind: EventUnknown, Data: Unknown{Raw: line}}
}

func parseParamSet(fields []string, line string) Event {
	if len(fields) != 4 {
		return unknownEvent(line)
	}
	effectID, err1 := parseUint(fields[1])
	value, err2 := parseFloat(fields[3])
	if err1 != nil || err2 != nil {
		return unknownEvent(line)
	}
	return Event{Kind: EventParamSet, Data: ParamSet{EffectID: effectID, Symbol: fields[2], Value: value}}
}

func parseAudioMonitor(fields []string, line string) Event {
	if len(fields) != 3 {
		return unknownEvent(line)
	}
	index, err1 := parseUint(fields[1])
	value, err2 := parseFloat(fields[2])
	if err1 != nil || err2 != nil {
		return unknownEvent(line)
	}
	return Event{Kind: EventAudioMonitor, Data: AudioMonitor{Index: index, Value: value}}
}

func parseOutputSet(fields []string, line string) Event {
	if len(fields) != 4 {
		return unknownEvent(line)
	}
	effectID, err1 := parseUint(fields[1])
	value, err2 := parseFloat(fields[3])
	if err1 != nil || err2 != nil {
		return unknownEvent(line)
	}
	return Event{Kind: EventOutputSet, Data: OutputSet{EffectID: effectID, Symbol: fields[2], Value: value}}
}

func parseMidiMapped(fields []string, line string) Event {
	if len(fields) != 5 {
		return unknownEvent(line)
	}
	effectID, err1 := parseUint(fields[1])
	channel, err2 := parseUint(fields[3])
	controller, err3 := parseUint(fields[4])
	if err1 != nil || err2 != nil || err3 != nil {
		return unknownEvent(line)
	}
	return Event{Kind: EventMidiMapped, Data: MidiMapped{
		EffectID: effectID, Symbol: fields[2], Channel: channel, Controller: controller,
	}}
}

func parseMidiControlChange(fields []string, line string) Event {
	if len(fields) != 4 {
		return unknownEvent(line)
	}
	channel, err1 := parseUint(fields[1])
	control, err2 := parseUint(fields[2])
	value, err3 := parseUint(fields[3])
	if err1 != nil || err2 != nil || err3 != nil || channel > 15 || control > 127 || value > 127 {
		return unknownEvent(line)
	}
	msg := midi.ControlChange(uint8(channel), uint8(control), uint8(value))
	return Event{Kind: EventMidiControlChange, Data: MidiControlChange{
		Channel: channel, Control: control, Value: value, RawBytes: msg.Bytes(),
	}}
}

func parseMidiProgramChange(fields []string, line string) Event {
	if len(fields) != 3 {
		return unknownEvent(line)
	}
	program, err1 := parseUint(fields[1])
	channel, err2 := parseUint(fields[2])
	if err1 != nil || err2 != nil || channel > 15 || program > 127 {
		return unknownEvent(line)
	}
	msg := midi.ProgramChange(uint8(channel), uint8(program))
	return Event{Kind: EventMidiProgramChange, Data: MidiProgramChange{
		Program: program, Channel: channel, RawBytes: msg.Bytes(),
	}}
}

func parseTransport(fields []string, line string) Event {
	if len(fields) != 4 {
		return unknownEvent(line)
	}
	rolling, err1 := strconv.ParseBool(fields[1])
	bpb, err2 := parseFloat(fields[2])
	bpm, err3 := parseFloat(fields[3])
	if err1 != nil || err2 != nil || err3 != nil {
		return unknownEvent(line)
	}
	return Event{Kind: EventTransport, Data: Transport{Rolling: rolling, BPB: bpb, BPM: bpm}}
}

func parsePatchSet(line string) Event {
	fields := strings.Fields(line)
	if len(fields) < 3 {
		return unknownEvent(line)
	}
	instance, err := parseUint(fields[1])
	if err != nil {
		return unknownEvent(line)
	}
	return Event{Kind: EventPatchSet, Data: PatchSet{
		Instance: instance, Symbol: fields[2], RawValue: restAfter(line, 3),
	}}
}

func parseLog(line string) Event {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return unknownEvent(line)
	}
	level, err := parseUint(fields[1])
	if err != nil {
		return unknownEvent(line)
	}
	return Event{Kind: EventLog, Data: Log{Level: level, Message: restAfter(line, 2)}}
}

func parseCPULoad(fields []string, line string) Event {
	if len(fields) != 4 {
		return unknownEvent(line)
	}
	load, err1 := parseFloat(fields[1])
	maxLoad, err2 := parseFloat(fields[2])
	xruns, err3 := parseUint(fields[3])
	if err1 != nil || err2 != nil || err3 != nil {
		return unknownEvent(line)
	}
	return Event{Kind: EventCPULoad, Data: CPULoad{Load: load, MaxLoad: maxLoad, Xruns: xruns}}
}

func parseUint(s string) (uint32, error) {
	n, err := strconv.ParseUint(s, 10, 32)
	return uint32(n), err
}

func parseFloat(s string) (float64, error) {
	return strconv.ParseFloat(s, 64)
}

// restAfter returns the remainder of line after skipping n whitespace
// separated tokens, preserving any internal spacing of the remainder
// (needed for patch_set's JSON value and log's free-text message).
func restAfter(line string, n int) string {
	rem := line
	for i := 0; i < n; i++ {
		rem = strings.TrimLeft(rem, " \t")
		idx := strings.IndexAny(rem, " \t")
		if idx < 0 {
			return ""
		}
		rem = rem[idx:]
	}
	return strings.TrimLeft(rem, " \t")
}

// Serialize renders an Event back to mod-host feedback wire text. Used by
// tests to assert parser idempotence: Parse(e.Serialize()) == e for every
// kind but EventUnknown, which is the deliberate escape hatch.
func (e Event) Serialize() string {
	switch d := e.Data.(type) {
	case ParamSet:
		return "param_set " + strconv.FormatUint(uint64(d.EffectID), 10) + " " + d.Symbol + " " + strconv.FormatFloat(d.Value, 'g', -1, 64)
	case AudioMonitor:
		return "audio_monitor " + strconv.FormatUint(uint64(d.Index), 10) + " " + strconv.FormatFloat(d.Value, 'g', -1, 64)
	case OutputSet:
		return "output_set " + strconv.FormatUint(uint64(d.EffectID), 10) + " " + d.Symbol + " " + strconv.FormatFloat(d.Value, 'g', -1, 64)
	case MidiMapped:
		return "midi_mapped " + strconv.FormatUint(uint64(d.EffectID), 10) + " " + d.Symbol + " " +
			strconv.FormatUint(uint64(d.Channel), 10) + " " + strconv.FormatUint(uint64(d.Controller), 10)
	case MidiControlChange:
		return "midi_control_change " + strconv.FormatUint(uint64(d.Channel), 10) + " " +
			strconv.FormatUint(uint64(d.Control), 10) + " " + strconv.FormatUint(uint64(d.Value), 10)
	case MidiProgramChange:
		return "midi_program_change " + strconv.FormatUint(uint64(d.Program), 10) + " " + strconv.FormatUint(uint64(d.Channel), 10)
	case Transport:
		return "transport " + strconv.FormatBool(d.Rolling) + " " + strconv.FormatFloat(d.BPB, 'g', -1, 64) + " " + strconv.FormatFloat(d.BPM, 'g', -1, 64)
	case PatchSet:
		return "patch_set " + strconv.FormatUint(uint64(d.Instance), 10) + " " + d.Symbol + " " + d.RawValue
	case Log:
		return "log " + strconv.FormatUint(uint64(d.Level), 10) + " " + d.Message
	case CPULoad:
		return "cpu_load " + strconv.FormatFloat(d.Load, 'g', -1, 64) + " " + strconv.FormatFloat(d.MaxLoad, 'g', -1, 64) + " " + strconv.FormatUint(uint64(d.Xruns), 10)
	case DataFinish:
		return "data_finish"
	case CCMap:
		return "cc_map " + d.Raw
	case Unknown:
		return d.Raw
	default:
		return ""
	}
}
