// Robot simulator: answers control frames over TCP with telemetry frames.
// Use this for local testing when you don't have real robot hardware.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"RoboCtl/internal/core"
	"RoboCtl/internal/model"
	"RoboCtl/internal/util"
)

func main() {
	def := model.DefaultConfig().Simulator
	addr := flag.String("addr", def.ListenAddr, "listen address")
	sensors := flag.Int("sensors", def.Sensors, "number of sensor readings per frame")
	battery := flag.Int("battery", def.BatteryMv, "starting battery in millivolts")
	level := flag.String("log", "info", "log level (debug, info, warn, error)")
	flag.Parse()

	if err := util.SetupLogger(*level); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	defer util.Sync()
	log := util.Named("simulator")

	cfg := model.SimulatorConfig{
		ListenAddr: *addr,
		Sensors:    *sensors,
		BatteryMv:  *battery,
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalw("invalid simulator flags", "error", err)
	}

	sim := core.NewSimulator(cfg, nil, log)
	if err := sim.Start(); err != nil {
		log.Fatalw("start simulator", "error", err)
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	if err := sim.Stop(); err != nil {
		log.Warnw("close listener", "error", err)
	}
	log.Info("simulator stopped")
}
