// Package svc hosts the enforcement watchdog as an OS service
// (systemd/launchd/SCM) so blocks keep expiring and healing after the
// starting CLI process exits or the machine reboots.
package svc

import (
	"context"

	"github.com/kardianos/service"
)

const (
	serviceName        = "enough-watchdog"
	serviceDisplayName = "Enough Watchdog"
	serviceDescription = "Re-asserts and expires enough blocking sessions."
)

// program adapts a cancellable run function to the service lifecycle.
type program struct {
	run    func(ctx context.Context)
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

func (p *program) Start(_ service.Service) error {
	go func() {
		defer close(p.done)
		p.run(p.ctx)
	}()
	return nil
}

func (p *program) Stop(_ service.Service) error {
	p.cancel()
	<-p.done
	return nil
}

// Daemon wraps the platform service manager for the watchdog.
type Daemon struct {
	svc service.Service
}

// New builds the watchdog service around run, which must return when
// its context is cancelled.
func New(run func(ctx context.Context), args ...string) (*Daemon, error) {
	ctx, cancel := context.WithCancel(context.Background())
	prg := &program{run: run, ctx: ctx, cancel: cancel, done: make(chan struct{})}
	cfg := &service.Config{
		Name:        serviceName,
		DisplayName: serviceDisplayName,
		Description: serviceDescription,
		Arguments:   args,
	}
	s, err := service.New(prg, cfg)
	if err != nil {
		cancel()
		return nil, err
	}
	return &Daemon{svc: s}, nil
}

func (d *Daemon) Install() error {
	return d.svc.Install()
}

func (d *Daemon) Uninstall() error {
	// Stop may fail when the service is not running, uninstall regardless.
	_ = d.svc.Stop()
	return d.svc.Uninstall()
}

func (d *Daemon) Start() error {
	return d.svc.Start()
}

// Run blocks, driving the watchdog under the service manager. When not
// launched by a service manager it runs interactively.
func (d *Daemon) Run() error {
	return d.svc.Run()
}
