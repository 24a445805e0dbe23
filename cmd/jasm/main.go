// jasm runs, inspects and benchmarks jasm images.
package main

import (
	"fmt"
	"os"

	"github.com/colorfulnotion/jasm/common"
	"github.com/colorfulnotion/jasm/config"
	"github.com/colorfulnotion/jasm/jvm"
	"github.com/colorfulnotion/jasm/jvm/program"
	"github.com/colorfulnotion/jasm/log"
	"github.com/colorfulnotion/jasm/storage"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
)

var (
	Version   = "dev"
	Commit    = "none"
	BuildTime = "unknown"
)

// app carries the state shared by every subcommand.
type app struct {
	configDir  string
	logLevel   string
	logModules string

	cfg *config.Config
}

// imageFlags select the image to run.
type imageFlags struct {
	conv        string
	path        string
	entry       int
	inputOffset int
}

func (f *imageFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.conv, "conv", "linked", "calling convention of the built-in Fibonacci image (linked|fast)")
	cmd.Flags().StringVar(&f.path, "image", "", "raw instruction file to load instead of the built-in image")
	cmd.Flags().IntVar(&f.entry, "entry", 0, "entry offset for --image")
	cmd.Flags().IntVar(&f.inputOffset, "input-offset", program.NoInput, "offset of the u32 input literal in --image")
}

func (f *imageFlags) loader() (program.Loader, error) {
	if f.path != "" {
		return program.FileLoader{Path: f.path, Entry: f.entry, InputOffset: f.inputOffset}, nil
	}
	conv, err := program.ParseConvention(f.conv)
	if err != nil {
		return nil, err
	}
	img, err := program.Fibonacci(conv)
	if err != nil {
		return nil, err
	}
	return program.Static(img), nil
}

// vmFlags override the [vm] section of jasm.toml.
type vmFlags struct {
	direction   string
	strict      bool
	checkFrames bool
	maxDepth    int
}

func (f *vmFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.direction, "direction", config.DirectionForward, "stack growth direction (forward|backward)")
	cmd.Flags().BoolVar(&f.strict, "strict", false, "fail on unknown opcodes")
	cmd.Flags().BoolVar(&f.checkFrames, "check-frames", true, "verify frame sizes on return")
	cmd.Flags().IntVar(&f.maxDepth, "max-call-depth", config.DefaultMaxCallDepth, "host recursion limit for standard runs")
}

func (a *app) vmConfig(cmd *cobra.Command, f *vmFlags) (jvm.Config, error) {
	vc := a.cfg.VM
	if cmd.Flags().Changed("direction") {
		vc.Direction = f.direction
	}
	if cmd.Flags().Changed("strict") {
		vc.Strict = f.strict
	}
	if cmd.Flags().Changed("check-frames") {
		vc.CheckFrames = &f.checkFrames
	}
	if cmd.Flags().Changed("max-call-depth") {
		vc.MaxCallDepth = f.maxDepth
	}
	return jvm.NewConfig(vc)
}

func (a *app) engine(cmd *cobra.Command, img *imageFlags, vf *vmFlags) (*jvm.Engine, error) {
	loader, err := img.loader()
	if err != nil {
		return nil, err
	}
	cfg, err := a.vmConfig(cmd, vf)
	if err != nil {
		return nil, err
	}
	e := jvm.NewEngine(loader, cfg)
	if err := e.Create(); err != nil {
		return nil, err
	}
	return e, nil
}

// openCache opens the result store named by --cache or jasm.toml, or returns nil.
func (a *app) openCache(path string, changed bool) (*storage.ResultStore, error) {
	if !changed {
		if !a.cfg.Cache.Enabled {
			return nil, nil
		}
		path = a.cfg.Cache.Path
	}
	return storage.OpenResultStore(path)
}

func (a *app) setup(cmd *cobra.Command) error {
	var (
		cfg *config.Config
		err error
	)
	if a.configDir != "" {
		cfg, err = config.Load(a.configDir)
	} else {
		cfg, err = config.FindAndLoad(".")
	}
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("log-level") {
		cfg.Log.Level = a.logLevel
	}
	if cmd.Flags().Changed("log-modules") {
		cfg.Log.Modules = a.logModules
	}
	useColor := isatty.IsTerminal(os.Stderr.Fd()) && cmd.ErrOrStderr() == os.Stderr
	if err := log.InitLoggerTo(cmd.ErrOrStderr(), cfg.Log.Level, useColor); err != nil {
		return err
	}
	log.EnableModules(cfg.Log.Modules)
	if cfg.VM.Trace {
		log.EnableModule(log.VMTrace)
	}
	a.cfg = cfg
	log.Debug(log.CLIModule, "configuration loaded", "dir", cfg.Dir, "direction", cfg.VM.Direction, "cache", cfg.Cache.Enabled)
	return nil
}

func version() string {
	commit := Commit
	if commit == "none" {
		commit = common.CommitHash()
	}
	return fmt.Sprintf("%s (%s, built %s)", Version, commit, BuildTime)
}

func newRootCmd() *cobra.Command {
	a := &app{}
	rootCmd := &cobra.Command{
		Use:           "jasm",
		Short:         "jasm bytecode VM",
		Version:       version(),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
	}
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.PersistentFlags().StringVar(&a.configDir, "config", "", "directory holding jasm.toml (default: search upwards from the working directory)")
	rootCmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "info", "log level (trace|debug|info|warn|error)")
	rootCmd.PersistentFlags().StringVar(&a.logModules, "log-modules", "", "comma separated modules to enable (vm_exec,vm_trace,vm_engine,cache,cli or all)")

	rootCmd.AddCommand(
		newRunCmd(a),
		newDisasmCmd(a),
		newBenchCmd(a),
		newCompareCmd(a),
		newFramesCmd(a),
		newReplCmd(a),
		newCacheCmd(a),
	)
	return rootCmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
