package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"RoboCtl/internal/model"
	"RoboCtl/internal/parser"
)

var (
	sendLED1  bool
	sendLED2  bool
	sendLeft  int
	sendRight int
)

func init() {
	rootCmd.AddCommand(pingCmd)
	rootCmd.AddCommand(sendCmd)

	sendCmd.Flags().BoolVar(&sendLED1, "led1", false, "turn LED 1 on")
	sendCmd.Flags().BoolVar(&sendLED2, "led2", false, "turn LED 2 on")
	sendCmd.Flags().IntVarP(&sendLeft, "left", "l", 0, "left motor [-128,127]")
	sendCmd.Flags().IntVarP(&sendRight, "right", "R", 0, "right motor [-128,127]")
}

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Check that the robot answers",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c := newClient()
		if err := c.Ping(context.Background()); err != nil {
			return fmt.Errorf("robot at %s: %w", c.BaseURL, err)
		}
		fmt.Fprintf(outWriter, "robot at %s is available\n", c.BaseURL)
		return nil
	},
}

var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Send one control frame and print the telemetry reply",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		state := model.ControlState{
			LED1:  sendLED1,
			LED2:  sendLED2,
			Left:  parser.Clamp8(sendLeft),
			Right: parser.Clamp8(sendRight),
		}
		frame := parser.EncodeControl(state)
		fmt.Fprintf(outWriter, "-> %s\n", frame)

		reply, err := newClient().Send(context.Background(), frame)
		if err != nil {
			return err
		}
		fmt.Fprintf(outWriter, "<- %s\n", reply)

		tf, err := parser.DecodeTelemetry(reply)
		if err != nil {
			return fmt.Errorf("decode reply: %w", err)
		}
		printTelemetry(tf)
		return nil
	},
}

func printTelemetry(tf model.TelemetryFrame) {
	fmt.Fprintf(outWriter, "battery: %d mV\n", tf.BatteryMilliVolts)
	for i, s := range tf.Sensors {
		fmt.Fprintf(outWriter, "sensor %d: %d\n", i+1, s)
	}
}
