// Package audiosystem wraps the external JACK-like audio backend. Every
// operation fails immediately until Init has succeeded once.
package audiosystem

import (
	"errors"
	"sync/atomic"
)

// ErrNotInitialized is returned by every operation when Init has not yet
// succeeded.
var ErrNotInitialized = errors.New("audiosystem: not initialized")

// Data is the JACK status snapshot returned by GetData.
type Data struct {
	CPULoad  float64 `json:"cpu_load"`
	Xruns    uint32  `json:"xruns"`
	Rolling  bool    `json:"rolling"`
	BPB      float64 `json:"bpb"`
	BPM      float64 `json:"bpm"`
}

// System is the opaque external JACK-like backend this package wraps.
type System interface {
	InitJACK() error
	CloseJACK() error
	GetJACKData(withTransport bool) (*Data, error)
	GetJACKBufferSize() (int, error)
	SetJACKBufferSize(size int) error
	GetJACKSampleRate() (int, error)
	GetJACKPortAlias(port string) (string, error)
	GetJACKHardwarePorts(isAudio, isOutput bool) ([]string, error)
	HasMidiBeatClockSenderPort() (bool, error)
	HasSerialMidiInputPort() (bool, error)
	HasSerialMidiOutputPort() (bool, error)
	HasMidiMergerOutputPort() (bool, error)
	HasMidiBroadcasterInputPort() (bool, error)
	HasDuoXSplitSPDIF() (bool, error)
	ConnectJACKPorts(a, b string) error
	ConnectJACKMidiOutputPorts(a, b string) error
	DisconnectJACKPorts(a, b string) error
	DisconnectAllJACKPorts(port string) error
	ResetXruns() error
}

// Adapter enforces the init guard around a System implementation.
type Adapter struct {
	backend     System
	initialized int32
}

// NewAdapter creates an Adapter over backend. It is not usable until Init
// succeeds.
func NewAdapter(backend System) *Adapter {
	return &Adapter{backend: backend}
}

// Init initializes the backend. Safe to call once; a second call before
// Close is a no-op returning nil.
func (a *Adapter) Init() error {
	if atomic.LoadInt32(&a.initialized) == 1 {
		return nil
	}
	if err := a.backend.InitJACK(); err != nil {
		return err
	}
	atomic.StoreInt32(&a.initialized, 1)
	return nil
}

// Close tears down the backend and clears the init guard.
func (a *Adapter) Close() error {
	if atomic.LoadInt32(&a.initialized) == 0 {
		return nil
	}
	err := a.backend.CloseJACK()
	atomic.StoreInt32(&a.initialized, 0)
	return err
}

func (a *Adapter) ready() error {
	if atomic.LoadInt32(&a.initialized) == 0 {
		return ErrNotInitialized
	}
	return nil
}

// GetData returns the current JACK status, or nil if unavailable.
func (a *Adapter) GetData(withTransport bool) (*Data, error) {
	if err := a.ready(); err != nil {
		return nil, err
	}
	return a.backend.GetJACKData(withTransport)
}

func (a *Adapter) GetBufferSize() (int, error) {
	if err := a.ready(); err != nil {
		return 0, err
	}
	return a.backend.GetJACKBufferSize()
}

func (a *Adapter) SetBufferSize(size int) error {
	if err := a.ready(); err != nil {
		return err
	}
	return a.backend.SetJACKBufferSize(size)
}

func (a *Adapter) GetSampleRate() (int, error) {
	if err := a.ready(); err != nil {
		return 0, err
	}
	return a.backend.GetJACKSampleRate()
}

func (a *Adapter) GetPortAlias(port string) (string, error) {
	if err := a.ready(); err != nil {
		return "", err
	}
	return a.backend.GetJACKPortAlias(port)
}

func (a *Adapter) GetHardwarePorts(isAudio, isOutput bool) ([]string, error) {
	if err := a.ready(); err != nil {
		return nil, err
	}
	return a.backend.GetJACKHardwarePorts(isAudio, isOutput)
}

func (a *Adapter) HasMidiBeatClockSenderPort() (bool, error) {
	if err := a.ready(); err != nil {
		return false, err
	}
	return a.backend.HasMidiBeatClockSenderPort()
}

func (a *Adapter) HasSerialMidiInputPort() (bool, error) {
	if err := a.ready(); err != nil {
		return false, err
	}
	return a.backend.HasSerialMidiInputPort()
}

func (a *Adapter) HasSerialMidiOutputPort() (bool, error) {
	if err := a.ready(); err != nil {
		return false, err
	}
	return a.backend.HasSerialMidiOutputPort()
}

func (a *Adapter) HasMidiMergerOutputPort() (bool, error) {
	if err := a.ready(); err != nil {
		return false, err
	}
	return a.backend.HasMidiMergerOutputPort()
}

func (a *Adapter) HasMidiBroadcasterInputPort() (bool, error) {
	if err := a.ready(); err != nil {
		return false, err
	}
	return a.backend.HasMidiBroadcasterInputPort()
}

func (a *Adapter) HasDuoXSplitSPDIF() (bool, error) {
	if err := a.ready(); err != nil {
		return false, err
	}
	return a.backend.HasDuoXSplitSPDIF()
}

func (a *Adapter) ConnectPorts(x, y string) error {
	if err := a.ready(); err != nil {
		return err
	}
	return a.backend.ConnectJACKPorts(x, y)
}

func (a *Adapter) ConnectMidiOutputPorts(x, y string) error {
	if err := a.ready(); err != nil {
		return err
	}
	return a.backend.ConnectJACKMidiOutputPorts(x, y)
}

func (a *Adapter) DisconnectPorts(x, y string) error {
	if err := a.ready(); err != nil {
		return err
	}
	return a.backend.DisconnectJACKPorts(x, y)
}

func (a *Adapter) DisconnectAllPorts(port string) error {
	if err := a.ready(); err != nil {
		return err
	}
	return a.backend.DisconnectAllJACKPorts(port)
}

func (a *Adapter) ResetXruns() error {
	if err := a.ready(); err != nil {
		return err
	}
	return a.backend.ResetXruns()
}
