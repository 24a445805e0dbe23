package main

import (
	"fmt"
	"time"

	"github.com/colorfulnotion/jasm/jvm"
	"github.com/colorfulnotion/jasm/jvm/program"
	"github.com/colorfulnotion/jasm/log"
	"github.com/spf13/cobra"
)

func modeOf(inline bool) jvm.Mode {
	if inline {
		return jvm.ModeInline
	}
	return jvm.ModeStandard
}

func newRunCmd(a *app) *cobra.Command {
	var (
		img       imageFlags
		vf        vmFlags
		input     uint32
		inline    bool
		cachePath string
		showState bool
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run an image on one input",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := a.engine(cmd, &img, &vf)
			if err != nil {
				return err
			}
			cache, err := a.openCache(cachePath, cmd.Flags().Changed("cache"))
			if err != nil {
				return err
			}
			if cache != nil {
				defer cache.Close()
				if err := cache.PutImage(e.Image()); err != nil {
					log.Warn(log.CacheMod, "storing image failed", "err", err)
				}
				e.WithCache(cache)
			}

			mode := modeOf(inline)
			start := time.Now()
			rv, err := e.RunMode(input, mode)
			if err != nil {
				return err
			}
			ctx := e.Context()
			log.Info(log.CLIModule, "run complete", "input", input, "mode", mode, "result", rv, "steps", ctx.Steps(), "depth", ctx.MaxDepth(), "elapsed", time.Since(start))
			fmt.Fprintf(cmd.OutOrStdout(), "%d\n", rv.Raw)
			if showState {
				b, err := ctx.State().JSON()
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(b))
			}
			return nil
		},
	}
	img.register(cmd)
	vf.register(cmd)
	cmd.Flags().Uint32Var(&input, "input", 20, "value patched into the input literal")
	cmd.Flags().BoolVar(&inline, "inline", false, "run without host recursion")
	cmd.Flags().StringVar(&cachePath, "cache", "", "result cache directory (empty: in memory)")
	cmd.Flags().BoolVar(&showState, "state", false, "print the final state snapshot as JSON")
	return cmd
}

func newDisasmCmd(a *app) *cobra.Command {
	var img imageFlags
	cmd := &cobra.Command{
		Use:   "disasm",
		Short: "Disassemble an image",
		RunE: func(cmd *cobra.Command, args []string) error {
			loader, err := img.loader()
			if err != nil {
				return err
			}
			image, err := loader.Load()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "; %d bytes, hash %s\n", image.Size(), image.Hash())
			fmt.Fprint(cmd.OutOrStdout(), program.Disassemble(image))
			return nil
		},
	}
	img.register(cmd)
	return cmd
}
