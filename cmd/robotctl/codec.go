package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"RoboCtl/internal/model"
	"RoboCtl/internal/parser"
)

var (
	codecFormat string
	encLED1     bool
	encLED2     bool
	encLeft     int
	encRight    int
)

func init() {
	rootCmd.AddCommand(encodeCmd)
	rootCmd.AddCommand(decodeCmd)

	encodeCmd.Flags().BoolVar(&encLED1, "led1", false, "LED 1 on")
	encodeCmd.Flags().BoolVar(&encLED2, "led2", false, "LED 2 on")
	encodeCmd.Flags().IntVarP(&encLeft, "left", "l", 0, "left motor [-128,127]")
	encodeCmd.Flags().IntVarP(&encRight, "right", "R", 0, "right motor [-128,127]")
	decodeCmd.Flags().StringVarP(&codecFormat, "output", "o", "json", "output format (json, frame)")
}

var encodeCmd = &cobra.Command{
	Use:   "encode",
	Short: "Print the control frame for a state",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(outWriter, parser.EncodeControl(model.ControlState{
			LED1:  encLED1,
			LED2:  encLED2,
			Left:  parser.Clamp8(encLeft),
			Right: parser.Clamp8(encRight),
		}))
	},
}

var decodeCmd = &cobra.Command{
	Use:     "decode FRAME",
	Short:   "Decode a telemetry frame",
	Example: "  robotctl decode '[01c01200300230005001840203]'",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, ok := parser.ByName(codecFormat)
		if !ok {
			return fmt.Errorf("unknown output format %q", codecFormat)
		}
		tf, err := parser.DecodeTelemetry(args[0])
		if err != nil {
			return err
		}
		out, err := p.EncodeTelemetry(tf)
		if err != nil {
			return err
		}
		fmt.Fprintln(outWriter, out)
		return nil
	},
}
