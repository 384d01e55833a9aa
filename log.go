package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/btcsuite/btclog"
	"github.com/jrick/logrotate/rotator"

	"github.com/yuvprotocol/yuvd/announcement"
	"github.com/yuvprotocol/yuvd/controller"
	"github.com/yuvprotocol/yuvd/graph"
	"github.com/yuvprotocol/yuvd/indexer"
	"github.com/yuvprotocol/yuvd/p2p"
	"github.com/yuvprotocol/yuvd/pipeline"
	"github.com/yuvprotocol/yuvd/pixel"
	"github.com/yuvprotocol/yuvd/store"
	"github.com/yuvprotocol/yuvd/txcheck"
)

// logWriter duplicates log output to stdout and the rotating log file.
type logWriter struct{}

func (logWriter) Write(p []byte) (n int, err error) {
	os.Stdout.Write(p)
	if logRotator != nil {
		logRotator.Write(p)
	}
	return len(p), nil
}

var (
	backendLog = btclog.NewBackend(logWriter{})
	logRotator *rotator.Rotator

	yuvdLog = backendLog.Logger("YUVD")
	rpcsLog = backendLog.Logger("RPCS")
	srvrLog = backendLog.Logger("SRVR")
)

// subsystemLoggers maps each subsystem identifier to its logger. The
// per-package loggers are handed out through each package's UseLogger.
var subsystemLoggers = map[string]btclog.Logger{
	"YUVD": yuvdLog,
	"RPCS": rpcsLog,
	"SRVR": srvrLog,
	"PXEL": backendLog.Logger("PXEL"),
	"ANNC": backendLog.Logger("ANNC"),
	"CHCK": backendLog.Logger("CHCK"),
	"GRPH": backendLog.Logger("GRPH"),
	"CTRL": backendLog.Logger("CTRL"),
	"INDX": backendLog.Logger("INDX"),
	"STOR": backendLog.Logger("STOR"),
	"P2PS": backendLog.Logger("P2PS"),
	"PIPE": backendLog.Logger("PIPE"),
}

func init() {
	pixel.UseLogger(subsystemLoggers["PXEL"])
	announcement.UseLogger(subsystemLoggers["ANNC"])
	txcheck.UseLogger(subsystemLoggers["CHCK"])
	graph.UseLogger(subsystemLoggers["GRPH"])
	controller.UseLogger(subsystemLoggers["CTRL"])
	indexer.UseLogger(subsystemLoggers["INDX"])
	store.UseLogger(subsystemLoggers["STOR"])
	p2p.UseLogger(subsystemLoggers["P2PS"])
	pipeline.UseLogger(subsystemLoggers["PIPE"])
}

// initLogRotator starts the rotating file writer the logWriter mirrors to.
func initLogRotator(logFile string) error {
	logDir, _ := filepath.Split(logFile)
	if err := os.MkdirAll(logDir, 0700); err != nil {
		return fmt.Errorf("failed to create log directory: %v", err)
	}

	r, err := rotator.New(logFile, 10*1024, false, 3)
	if err != nil {
		return fmt.Errorf("failed to create file rotator: %v", err)
	}

	logRotator = r
	return nil
}

// setLogLevels applies the same level to every subsystem logger.
func setLogLevels(levelStr string) error {
	level, ok := btclog.LevelFromString(levelStr)
	if !ok {
		return fmt.Errorf("unknown log level %q", levelStr)
	}

	for _, logger := range subsystemLoggers {
		logger.SetLevel(level)
	}
	return nil
}
