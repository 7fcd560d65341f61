// Package orchestrator wires every subsystem of the bridge together and
// runs the boot/shutdown sequence: construct in dependency order, block
// until the caller's context is cancelled, then tear down.
package orchestrator

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/shaban/modhost-bridge/audiosystem"
	"github.com/shaban/modhost-bridge/bundlewatcher"
	"github.com/shaban/modhost-bridge/catalog"
	"github.com/shaban/modhost-bridge/config"
	"github.com/shaban/modhost-bridge/health"
	"github.com/shaban/modhost-bridge/ipc"
	"github.com/shaban/modhost-bridge/logging"
	"github.com/shaban/modhost-bridge/modhost"
	"github.com/shaban/modhost-bridge/registry"
)

const (
	rpcTimeout         = 2 * time.Second
	connectivityRetry  = time.Second
	connectivityDialTO = 500 * time.Millisecond
)

// Orchestrator owns every long-lived subsystem and the order they start
// and stop in.
type Orchestrator struct {
	cfg       config.Config
	discovery catalog.Discovery
	backend   audiosystem.System
	errs      logging.ErrorHandler

	health *health.State
}

// New constructs an Orchestrator. discovery and backend are the opaque
// external LV2 scanner and JACK-like audio library this bridge fronts.
func New(cfg config.Config, discovery catalog.Discovery, backend audiosystem.System, errs logging.ErrorHandler) *Orchestrator {
	if errs == nil {
		errs = logging.DefaultErrorHandler{}
	}
	return &Orchestrator{cfg: cfg, discovery: discovery, backend: backend, errs: errs}
}

// Run executes the full boot sequence, blocks until ctx is cancelled, then
// stops the feedback reader and command service, the health monitor, the
// registry (and its bundle watcher), and the event socket, in that order.
// It returns nil on a
// clean shutdown and a non-nil error only for an unrecoverable boot failure.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.health = health.New(func(msg string) { o.errs.HandleError(fmt.Errorf("health: %s", msg)) })

	ipcCtx, ipcCancel := context.WithCancel(context.Background())
	defer ipcCancel()

	healthMonitor, err := ipc.NewHealthMonitor(ipcCtx, o.cfg.HealthAddr, o.health)
	if err != nil {
		return fmt.Errorf("orchestrator: bind health socket: %w", err)
	}

	healthCtx, healthCancel := context.WithCancel(context.Background())
	var healthWG sync.WaitGroup
	healthWG.Add(1)
	go func() {
		defer healthWG.Done()
		if err := healthMonitor.Run(healthCtx); err != nil {
			o.errs.HandleError(fmt.Errorf("health monitor: %w", err))
		}
	}()
	stopHealthMonitor := func() {
		healthCancel()
		healthMonitor.Close()
		healthWG.Wait()
	}

	o.pollConnectivity(ctx)
	if ctx.Err() != nil {
		stopHealthMonitor()
		return nil
	}

	events, err := ipc.NewEventPublisher(ipcCtx, o.cfg.PubAddr)
	if err != nil {
		stopHealthMonitor()
		return fmt.Errorf("orchestrator: bind event socket: %w", err)
	}
	events.SetWarnFunc(func(format string, args ...interface{}) {
		o.errs.HandleError(fmt.Errorf(format, args...))
	})

	client := modhost.NewClient(o.cfg.ModHostHost, o.cfg.ModHostPort, o.health)
	cat := catalog.New(o.discovery, func(format string, args ...interface{}) {
		o.errs.HandleError(fmt.Errorf(format, args...))
	})

	// watcher's onChange closes over reg, which is assigned right after;
	// Start (called from reg.Initialize below) only runs once reg is set.
	var reg *registry.Registry
	watcher := bundlewatcher.New(o.cfg.BundlePaths, func() {
		if reg == nil {
			return
		}
		if err := reg.Rescan(); err != nil {
			o.errs.HandleError(fmt.Errorf("bundlewatcher rescan: %w", err))
		}
	})
	reg = registry.New(client, cat, events, watcher, rpcTimeout)
	reg.SetWarnFunc(func(format string, args ...interface{}) {
		o.errs.HandleError(fmt.Errorf(format, args...))
	})

	audioAdapter := audiosystem.NewAdapter(o.backend)

	cmdService, err := ipc.NewCommandService(ipcCtx, o.cfg.RepAddr, client, reg, audioAdapter, o.health, rpcTimeout)
	if err != nil {
		events.Close()
		stopHealthMonitor()
		return fmt.Errorf("orchestrator: bind command socket: %w", err)
	}

	reader := modhost.NewReader(o.cfg.ModHostHost, o.cfg.ModHostFeedbackPort, o.health, events, o.errs)

	if err := reg.Initialize(); err != nil {
		cmdService.Close()
		events.Close()
		stopHealthMonitor()
		return fmt.Errorf("orchestrator: initialize registry: %w", err)
	}

	readerCtx, readerCancel := context.WithCancel(context.Background())
	cmdCtx, cmdCancel := context.WithCancel(context.Background())

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		reader.Run(readerCtx)
	}()
	go func() {
		defer wg.Done()
		if err := cmdService.Run(cmdCtx); err != nil {
			o.errs.HandleError(fmt.Errorf("command service: %w", err))
		}
	}()

	<-ctx.Done()

	readerCancel()
	cmdCancel()
	wg.Wait()

	stopHealthMonitor()
	reg.Shutdown(context.Background())
	events.Close()
	ipcCancel()

	return nil
}

// pollConnectivity blocks until both the mod-host command and feedback
// ports accept a TCP connection, or ctx is cancelled. HealthState is
// updated on every attempt so health probes observe progress during boot.
func (o *Orchestrator) pollConnectivity(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		cmdOK := probe(o.cfg.ModHostHost, o.cfg.ModHostPort)
		feedbackOK := probe(o.cfg.ModHostHost, o.cfg.ModHostFeedbackPort)
		o.health.UpdateCommandConnection(cmdOK)
		o.health.UpdateFeedbackConnection(feedbackOK)
		if cmdOK && feedbackOK {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(connectivityRetry):
		}
	}
}

func probe(host string, port int) bool {
	addr := net.JoinHostPort(host, strconv.Itoa(port))
	conn, err := net.DialTimeout("tcp", addr, connectivityDialTO)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}
