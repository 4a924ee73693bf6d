package main

import (
	"context"
	"fmt"
	"time"

	"github.com/kardianos/service"
)

const (
	serviceName        = "horde-bridge-worker"
	serviceDisplayName = "Horde Bridge Worker"
	serviceDescription = "Runs generation jobs against the AI Horde and records outcomes locally."
)

// program implements service.Interface, wrapping the worker run loop
// so the binary can run under systemd, launchd, or Windows SCM.
type program struct {
	cancel context.CancelFunc
	exit   chan struct{}
}

// Start begins the worker in a goroutine; the service manager expects
// Start to return promptly.
func (p *program) Start(s service.Service) error {
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.exit = make(chan struct{})

	go func() {
		defer close(p.exit)
		runWorker(ctx)
	}()

	return nil
}

// Stop signals the worker to shut down and waits for it to drain.
func (p *program) Stop(s service.Service) error {
	p.cancel()

	select {
	case <-p.exit:
		return nil
	case <-time.After(90 * time.Second):
		return fmt.Errorf("timeout waiting for worker to stop")
	}
}

func serviceConfig() *service.Config {
	return &service.Config{
		Name:        serviceName,
		DisplayName: serviceDisplayName,
		Description: serviceDescription,
	}
}

// HandleServiceCommand processes service control arguments
// (install, uninstall, start, stop, restart). Returns true with an
// exit code when a command was handled; false means the caller should
// run normally.
func HandleServiceCommand(args []string) (bool, int) {
	if len(args) == 0 {
		return false, 0
	}

	switch args[0] {
	case "install", "uninstall", "start", "stop", "restart":
	default:
		return false, 0
	}

	svc, err := service.New(&program{}, serviceConfig())
	if err != nil {
		fmt.Printf("Failed to initialize service: %v\n", err)
		return true, 1
	}

	if err := service.Control(svc, args[0]); err != nil {
		fmt.Printf("Service %s failed: %v\n", args[0], err)
		return true, 1
	}

	fmt.Printf("Service %s succeeded\n", args[0])
	return true, 0
}

// RunAsService runs the worker under the platform service manager.
// Used when the process was launched by the manager rather than a
// terminal.
func RunAsService() int {
	svc, err := service.New(&program{}, serviceConfig())
	if err != nil {
		fmt.Printf("Failed to initialize service: %v\n", err)
		return 1
	}

	if err := svc.Run(); err != nil {
		fmt.Printf("Service run failed: %v\n", err)
		return 1
	}
	return 0
}
