package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/colorfulnotion/jasm/jvm"
	"github.com/colorfulnotion/jasm/jvm/program"
	"github.com/spf13/cobra"
	"github.com/yudai/gojsondiff"
	"github.com/yudai/gojsondiff/formatter"
)

func snapshot(cfg jvm.Config, conv program.Convention, input uint32, mode jvm.Mode) ([]byte, error) {
	img, err := program.Fibonacci(conv)
	if err != nil {
		return nil, err
	}
	e := jvm.NewEngine(program.Static(img), cfg)
	if err := e.Create(); err != nil {
		return nil, err
	}
	if _, err := e.RunMode(input, mode); err != nil {
		return nil, fmt.Errorf("%s: %w", conv, err)
	}
	return e.Context().State().JSON()
}

// diffStates writes an ascii diff of two JSON snapshots and reports whether they differ.
func diffStates(w io.Writer, left, right []byte, color bool) (bool, error) {
	delta, err := gojsondiff.New().Compare(left, right)
	if err != nil {
		return false, err
	}
	if !delta.Modified() {
		return false, nil
	}
	var leftObj interface{}
	if err := json.Unmarshal(left, &leftObj); err != nil {
		return true, err
	}
	asciiFmt := formatter.NewAsciiFormatter(leftObj, formatter.AsciiFormatterConfig{
		ShowArrayIndex: true,
		Coloring:       color,
	})
	out, err := asciiFmt.Format(delta)
	if err != nil {
		return true, err
	}
	fmt.Fprint(w, out)
	return true, nil
}

func newCompareCmd(a *app) *cobra.Command {
	var (
		vf     vmFlags
		input  uint32
		inline bool
		color  bool
	)
	cmd := &cobra.Command{
		Use:   "compare",
		Short: "Run the linked and fast images on one input and diff their final states",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.vmConfig(cmd, &vf)
			if err != nil {
				return err
			}
			mode := modeOf(inline)
			linked, err := snapshot(cfg, program.Linked, input, mode)
			if err != nil {
				return err
			}
			fast, err := snapshot(cfg, program.Fast, input, mode)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "--- %s\n+++ %s\n", program.Linked, program.Fast)
			differ, err := diffStates(cmd.OutOrStdout(), linked, fast, color)
			if err != nil {
				return err
			}
			if !differ {
				fmt.Fprintln(cmd.OutOrStdout(), "states are identical")
			}
			return nil
		},
	}
	vf.register(cmd)
	cmd.Flags().Uint32Var(&input, "input", 20, "input for both runs")
	cmd.Flags().BoolVar(&inline, "inline", false, "run without host recursion")
	cmd.Flags().BoolVar(&color, "color", false, "colour the diff")
	return cmd
}
