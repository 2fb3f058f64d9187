package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net"
	"os"
	"path/filepath"

	"github.com/manifoldco/promptui"
	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"

	"RoboCtl/internal/core"
	"RoboCtl/internal/model"
	"RoboCtl/internal/util"
)

var (
	cfgFile   string
	robotFlag string
	verbose   bool

	cfg model.Config
	// askRobot is set when neither a config file nor --robot names the robot.
	askRobot bool

	outWriter io.Writer = os.Stdout
	errWriter io.Writer = os.Stderr
	inReader  io.Reader = os.Stdin
)

var rootCmd = &cobra.Command{
	Use:   "robotctl",
	Short: "Operator console for the LED and motor robot",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		outWriter = cmd.OutOrStdout()
		errWriter = cmd.ErrOrStderr()
		inReader = cmd.InOrStdin()

		level := "warn"
		if verbose {
			level = "debug"
		}
		return util.SetupLogger(level)
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		util.Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(errWriter, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.robotctl.yml)")
	rootCmd.PersistentFlags().StringVarP(&robotFlag, "robot", "r", "", "robot or relay address (host:port)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	cobra.OnInitialize(onInit)
}

func onInit() {
	path, err := configPath()
	if err != nil {
		errorExit("Unable to locate config: %v\n", err)
	}
	c, err := model.LoadConfig(path)
	switch {
	case err == nil:
		cfg = c
	case errors.Is(err, fs.ErrNotExist) && cfgFile == "":
		cfg = model.DefaultConfig()
		askRobot = robotFlag == ""
	default:
		errorExit("Invalid config: %v\n", err)
	}

	// Any set flags override the configuration
	if robotFlag != "" {
		cfg.Controller.RobotAddr = robotFlag
	}
}

func configPath() (string, error) {
	if cfgFile != "" {
		return cfgFile, nil
	}
	home, err := homedir.Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".robotctl.yml"), nil
}

// promptRobotAddr asks for the robot address when nothing is configured.
// It returns def when stdin is not interactive.
func promptRobotAddr(def string) string {
	prompt := promptui.Prompt{
		Label:   "Robot address",
		Default: def,
		Validate: func(s string) error {
			_, _, err := net.SplitHostPort(s)
			return err
		},
	}
	addr, err := prompt.Run()
	if err != nil {
		return def
	}
	return addr
}

func newClient() *core.RobotClient {
	if askRobot {
		cfg.Controller.RobotAddr = promptRobotAddr(cfg.Controller.RobotAddr)
		askRobot = false
	}
	cc := cfg.Controller
	return core.NewRobotClient(cc.RobotAddr, cc.RequestTimeout(), cc.ContentType)
}

func newController() *core.Controller {
	cc := cfg.Controller
	return core.NewController(newClient(), core.ControllerOptions{
		ResendInterval: cc.ResendInterval(),
		Debounce:       cc.Debounce(),
		Logger:         util.Named("controller"),
	})
}

func errorExit(format string, a ...interface{}) {
	fmt.Fprintf(errWriter, format, a...)
	os.Exit(1)
}
