package main

import (
	"encoding/json"
	"fmt"

	"github.com/colorfulnotion/jasm/jvm"
	"github.com/colorfulnotion/jasm/jvm/program"
	"github.com/spf13/cobra"
	"github.com/xlab/treeprint"
)

// trapTree renders the frame chain root first, each call nested under its caller.
func trapTree(trap *jvm.Trap) treeprint.Tree {
	tree := treeprint.New()
	tree.SetValue(fmt.Sprintf("trap depth=%d ip=0x%04x sp=%d eax=%d", trap.Depth, trap.IP, trap.State.SP, trap.State.Registers["eax"]))
	branch := tree
	for i := len(trap.Frames) - 1; i >= 0; i-- {
		f := trap.Frames[i]
		label := f.String()
		if f.Convention == program.Fast && f.Depth > 0 {
			label = fmt.Sprintf("%s local=%d", label, f.Local)
		}
		branch = branch.AddBranch(label)
	}
	if trap.Err != "" {
		tree.AddNode("walk stopped: " + trap.Err)
	}
	return tree
}

func newFramesCmd(a *app) *cobra.Command {
	var (
		img    imageFlags
		vf     vmFlags
		input  uint32
		depth  int
		inline bool
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "frames",
		Short: "Stop at a call depth and print the live frame chain",
		RunE: func(cmd *cobra.Command, args []string) error {
			if depth < 1 {
				return fmt.Errorf("--depth must be positive, got %d", depth)
			}
			e, err := a.engine(cmd, &img, &vf)
			if err != nil {
				return err
			}
			e.Context().SetBreakDepth(depth)
			rv, err := e.RunMode(input, modeOf(inline))
			if err != nil {
				return err
			}
			trap := e.Context().Trap()
			if trap == nil {
				return fmt.Errorf("input %d never reached depth %d (max %d)", input, depth, e.Context().MaxDepth())
			}
			if asJSON {
				b, err := json.MarshalIndent(trap, "", "  ")
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(b))
				return nil
			}
			fmt.Fprint(cmd.OutOrStdout(), trapTree(trap).String())
			fmt.Fprintf(cmd.OutOrStdout(), "result %d\n", rv.Raw)
			return nil
		},
	}
	img.register(cmd)
	vf.register(cmd)
	cmd.Flags().Uint32Var(&input, "input", 10, "value patched into the input literal")
	cmd.Flags().IntVar(&depth, "depth", 3, "call depth to stop at")
	cmd.Flags().BoolVar(&inline, "inline", false, "run without host recursion")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the trap as JSON")
	return cmd
}
