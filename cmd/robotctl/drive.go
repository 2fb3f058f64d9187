package main

import (
	"bufio"
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"RoboCtl/internal/core"
	"RoboCtl/internal/model"
)

func init() {
	rootCmd.AddCommand(driveCmd)
}

const driveHelp = `commands:
  speed N | steer N     set a drive slider and send
  left N  | right N     set one motor and send
  led1    | led2        toggle an LED
  drag                  start a slider drag (sending paused)
  release               end the drag and send once
  nudge N               set speed without a drag, sent after the debounce window
  stop                  zero both motors
  status | telemetry    show connection status or last telemetry
  quit`

var driveCmd = &cobra.Command{
	Use:   "drive",
	Short: "Interactive control session with periodic resend",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctrl := newController()
		defer ctrl.Close()

		done := make(chan struct{})
		defer close(done)
		go printEvents(ctrl.Events(), done)

		if err := ctrl.Connect(context.Background()); err != nil {
			fmt.Fprintf(errWriter, "%v (the next change that reaches the robot reconnects)\n", err)
		}

		fmt.Fprintln(outWriter, driveHelp)
		sc := bufio.NewScanner(inReader)
		for {
			fmt.Fprint(outWriter, "> ")
			if !sc.Scan() {
				return sc.Err()
			}
			quit, err := runDriveCommand(ctrl, strings.Fields(sc.Text()))
			if err != nil {
				fmt.Fprintln(errWriter, err)
			}
			if quit {
				return nil
			}
		}
	},
}

func runDriveCommand(ctrl *core.Controller, fields []string) (bool, error) {
	if len(fields) == 0 {
		return false, nil
	}
	arg := func() (int, error) {
		if len(fields) < 2 {
			return 0, fmt.Errorf("%s needs a value", fields[0])
		}
		return strconv.Atoi(fields[1])
	}

	switch fields[0] {
	case "speed", "steer", "nudge":
		v, err := arg()
		if err != nil {
			return false, err
		}
		in := ctrl.Drive()
		if fields[0] == "steer" {
			in.Steering = v
		} else {
			in.Speed = v
		}
		if fields[0] == "nudge" {
			ctrl.SetDriveDebounced(in)
		} else {
			ctrl.SetDrive(in)
		}
	case "left", "right":
		v, err := arg()
		if err != nil {
			return false, err
		}
		if fields[0] == "left" {
			ctrl.SetLeftMotor(v)
		} else {
			ctrl.SetRightMotor(v)
		}
	case "led1":
		ctrl.ToggleLED1()
	case "led2":
		ctrl.ToggleLED2()
	case "drag":
		ctrl.BeginDrag()
	case "release":
		ctrl.EndDrag()
	case "stop":
		ctrl.Stop()
	case "status":
		s := ctrl.State()
		fmt.Fprintf(outWriter, "%s  led1=%t led2=%t left=%d right=%d dragging=%t\n",
			ctrl.Status(), s.LED1, s.LED2, s.Left, s.Right, ctrl.Dragging())
	case "telemetry":
		tf, ok := ctrl.Telemetry()
		if !ok {
			fmt.Fprintln(outWriter, "no telemetry yet")
			break
		}
		printTelemetry(tf)
	case "quit", "exit":
		return true, nil
	case "help":
		fmt.Fprintln(outWriter, driveHelp)
	default:
		return false, fmt.Errorf("unknown command %q (try help)", fields[0])
	}
	return false, nil
}

// printEvents shows controller notifications until done is closed.
func printEvents(events <-chan model.Event, done <-chan struct{}) {
	for {
		select {
		case <-done:
			return
		case ev := <-events:
			switch ev.Kind {
			case model.EventStatus:
				fmt.Fprintf(errWriter, "[%s] status: %s\n", ev.At.Format("15:04:05"), ev.Message)
			case model.EventError:
				fmt.Fprintf(errWriter, "[%s] error: %s\n", ev.At.Format("15:04:05"), ev.Message)
			case model.EventMalformed:
				fmt.Fprintf(errWriter, "[%s] malformed reply: %s\n", ev.At.Format("15:04:05"), ev.Message)
			case model.EventTelemetry:
				if ev.Telemetry != nil {
					fmt.Fprintf(errWriter, "[%s] battery %d mV, sensors %v\n",
						ev.At.Format("15:04:05"), ev.Telemetry.BatteryMilliVolts, ev.Telemetry.Sensors)
				}
			}
		}
	}
}
