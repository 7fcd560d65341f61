package ipc

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/go-zeromq/zmq4"

	"github.com/shaban/modhost-bridge/modhost"
)

type fakePubSocket struct {
	sent [][]byte
	err  error
}

func (f *fakePubSocket) Send(msg zmq4.Msg) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, msg.Bytes())
	return nil
}

func (f *fakePubSocket) Close() error { return nil }

func TestPublishEventEnvelopeShape(t *testing.T) {
	sock := &fakePubSocket{}
	p := &EventPublisher{sock: sock}

	if err := p.PublishEvent("plugin_loaded", map[string]string{"instance_id": "plugin_1_abcd1234"}); err != nil {
		t.Fatalf("PublishEvent: %v", err)
	}
	if len(sock.sent) != 1 {
		t.Fatalf("expected one send, got %d", len(sock.sent))
	}

	var env Envelope
	if err := json.Unmarshal(sock.sent[0], &env); err != nil {
		t.Fatalf("unmarshal envelope: %v", err)
	}
	if env.Type != "plugin_loaded" {
		t.Fatalf("Type = %q", env.Type)
	}
	if env.Timestamp == 0 {
		t.Fatal("expected a nonzero timestamp")
	}
}

func TestPublishFailureIsNonFatal(t *testing.T) {
	var warned bool
	sock := &fakePubSocket{err: errors.New("slow subscriber")}
	p := &EventPublisher{sock: sock}
	p.SetWarnFunc(func(string, ...interface{}) { warned = true })

	err := p.PublishEvent("param_set", map[string]int{"value": 1})
	if err == nil {
		t.Fatal("expected PublishEvent to surface the send error to the caller")
	}
	if !warned {
		t.Fatal("expected warn callback invoked on publish failure")
	}
}

func TestPublishAdaptsModhostEvent(t *testing.T) {
	sock := &fakePubSocket{}
	p := &EventPublisher{sock: sock}

	ev := modhost.Event{Kind: modhost.EventParamSet, Data: modhost.ParamSet{EffectID: 1, Symbol: "gain", Value: 0.5}}
	if err := p.Publish(ev); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	var env Envelope
	json.Unmarshal(sock.sent[0], &env)
	if env.Type != "param_set" {
		t.Fatalf("Type = %q, want param_set", env.Type)
	}
}
