// Package main is the entry point of the RoboCtl relay.
// It initializes the logger, loads the configuration, opens the robot link
// and serves the HTTP relay until interrupted.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"RoboCtl/internal/core"
	"RoboCtl/internal/util"
)

func main() {
	cfgPath := flag.String("c", "configs/config.yml", "path to configuration file")
	level := flag.String("log", "info", "log level (debug, info, warn, error)")
	flag.Parse()

	if err := util.SetupLogger(*level); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	defer util.Sync()
	log := util.Named("main")

	log.Infow("using config", "path", *cfgPath)

	sys, err := core.NewSystem(*cfgPath)
	if err != nil {
		log.Fatalw("failed to create system", "error", err)
	}
	if err := sys.StartAll(); err != nil {
		log.Fatalw("failed to start system", "error", err)
	}

	// wait for Ctrl+C, SIGTERM or a server failure
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	select {
	case <-stop:
	case err := <-sys.Errors():
		log.Errorw("relay failed", "error", err)
	}

	log.Info("shutting down")
	if err := sys.StopAll(); err != nil {
		log.Warnw("shutdown finished with errors", "error", err)
		return
	}
	log.Info("stopped cleanly")
}
