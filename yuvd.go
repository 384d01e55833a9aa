package main

import (
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
)

const appName = "yuvd"

// appVersion follows the release branch; bump on tag.
const appVersion = "0.1.0"

func version() string {
	return appVersion
}

// yuvdMain is the true entry point. It exists so defers run before the
// process exits, which they would not if main called os.Exit directly.
func yuvdMain() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	defer func() {
		if logRotator != nil {
			logRotator.Close()
		}
	}()

	yuvdLog.Infof("Version %s", version())

	// A single shutdown request channel is shared by the signal handler,
	// the indexer's terminal-failure path, and the health monitor.
	shutdownChan := make(chan struct{})
	var shutdownOnce sync.Once
	requestShutdown := func() {
		shutdownOnce.Do(func() { close(shutdownChan) })
	}

	srv, err := newServer(cfg, requestShutdown)
	if err != nil {
		return fmt.Errorf("failed to build server: %v", err)
	}

	if err := srv.Start(); err != nil {
		srv.Stop()
		return fmt.Errorf("failed to start server: %v", err)
	}

	rpc := newRPCServer(srv)
	if err := rpc.Start(); err != nil {
		srv.Stop()
		return fmt.Errorf("failed to start rpc server: %v", err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		yuvdLog.Infof("Received %v, shutting down", sig)
	case <-shutdownChan:
		yuvdLog.Infof("Shutdown requested internally")
	}

	if err := rpc.Stop(); err != nil {
		yuvdLog.Errorf("failed to stop rpc server: %v", err)
	}
	return srv.Stop()
}

func main() {
	if err := yuvdMain(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
