package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/chzyer/readline"
	"github.com/colorfulnotion/jasm/jvm"
	"github.com/colorfulnotion/jasm/jvm/program"
	"github.com/colorfulnotion/jasm/log"
	"github.com/dop251/goja"
	"github.com/spf13/cobra"
)

const replHelp = `bare numbers run the current image; otherwise lines are JavaScript:
  run(n)  runInline(n)  use("linked"|"fast")  disasm()  state()  frames(n, depth)  print(...)`

// console binds an engine per convention to a JavaScript runtime.
type console struct {
	cfg     jvm.Config
	engines map[program.Convention]*jvm.Engine
	conv    program.Convention
	vm      *goja.Runtime
	out     io.Writer
}

func newConsole(cfg jvm.Config, conv program.Convention, out io.Writer) (*console, error) {
	c := &console{cfg: cfg, engines: make(map[program.Convention]*jvm.Engine), conv: conv, vm: goja.New(), out: out}
	if _, err := c.engine(); err != nil {
		return nil, err
	}

	c.vm.Set("run", func(n uint32) (uint64, error) { return c.run(n, jvm.ModeStandard) })
	c.vm.Set("runInline", func(n uint32) (uint64, error) { return c.run(n, jvm.ModeInline) })
	c.vm.Set("use", func(name string) (string, error) {
		conv, err := program.ParseConvention(name)
		if err != nil {
			return "", err
		}
		c.conv = conv
		if _, err := c.engine(); err != nil {
			return "", err
		}
		return conv.String(), nil
	})
	c.vm.Set("disasm", func() (string, error) {
		e, err := c.engine()
		if err != nil {
			return "", err
		}
		return program.Disassemble(e.Image()), nil
	})
	c.vm.Set("state", func() (map[string]interface{}, error) {
		e, err := c.engine()
		if err != nil {
			return nil, err
		}
		return toObject(e.Context().State())
	})
	c.vm.Set("frames", func(n uint32, depth int) (map[string]interface{}, error) {
		e, err := c.engine()
		if err != nil {
			return nil, err
		}
		e.Context().SetBreakDepth(depth)
		defer e.Context().SetBreakDepth(0)
		if _, err := e.Run(n); err != nil {
			return nil, err
		}
		trap := e.Context().Trap()
		if trap == nil {
			return nil, fmt.Errorf("depth %d not reached", depth)
		}
		return toObject(trap)
	})
	c.vm.Set("print", func(args ...goja.Value) {
		for _, arg := range args {
			fmt.Fprintln(c.out, arg.Export())
		}
	})
	return c, nil
}

func toObject(v interface{}) (map[string]interface{}, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]interface{}
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	return m, nil
}

func (c *console) engine() (*jvm.Engine, error) {
	if e, ok := c.engines[c.conv]; ok {
		return e, nil
	}
	img, err := program.Fibonacci(c.conv)
	if err != nil {
		return nil, err
	}
	e := jvm.NewEngine(program.Static(img), c.cfg)
	if err := e.Create(); err != nil {
		return nil, err
	}
	c.engines[c.conv] = e
	return e, nil
}

func (c *console) run(n uint32, mode jvm.Mode) (uint64, error) {
	e, err := c.engine()
	if err != nil {
		return 0, err
	}
	rv, err := e.RunMode(n, mode)
	if err != nil {
		return 0, err
	}
	log.Debug(log.CLIModule, "repl run", "conv", c.conv, "mode", mode, "n", n, "steps", e.Context().Steps())
	return rv.Raw, nil
}

// eval runs one line and renders its value. Empty results print nothing.
func (c *console) eval(line string) (string, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return "", nil
	}
	if n, err := strconv.ParseUint(line, 10, 32); err == nil {
		v, err := c.run(uint32(n), jvm.ModeStandard)
		if err != nil {
			return "", err
		}
		return strconv.FormatUint(v, 10), nil
	}
	value, err := c.vm.RunString(line)
	if err != nil {
		return "", err
	}
	if value == nil || goja.IsUndefined(value) || goja.IsNull(value) {
		return "", nil
	}
	switch exported := value.Export().(type) {
	case map[string]interface{}, []interface{}:
		b, err := json.MarshalIndent(exported, "", "  ")
		if err != nil {
			return "", err
		}
		return string(b), nil
	default:
		return value.String(), nil
	}
}

func newReplCmd(a *app) *cobra.Command {
	var (
		vf      vmFlags
		conv    string
		history string
	)
	cmd := &cobra.Command{
		Use:   "repl",
		Short: "Interactive console over the built-in images",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.vmConfig(cmd, &vf)
			if err != nil {
				return err
			}
			c, err := program.ParseConvention(conv)
			if err != nil {
				return err
			}
			con, err := newConsole(cfg, c, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			rl, err := readline.NewEx(&readline.Config{
				Prompt:      "jasm> ",
				HistoryFile: history,
				Stdout:      cmd.OutOrStdout(),
			})
			if err != nil {
				return err
			}
			defer rl.Close()

			fmt.Fprintln(cmd.OutOrStdout(), replHelp)
			for {
				line, err := rl.Readline()
				if err != nil { // io.EOF or interrupt
					return nil
				}
				if t := strings.TrimSpace(line); t == "exit" || t == "quit" {
					return nil
				}
				out, err := con.eval(line)
				if err != nil {
					fmt.Fprintln(cmd.OutOrStdout(), "error:", err)
					continue
				}
				if out != "" {
					fmt.Fprintln(cmd.OutOrStdout(), out)
				}
			}
		},
	}
	vf.register(cmd)
	cmd.Flags().StringVar(&conv, "conv", "linked", "initial calling convention (linked|fast)")
	cmd.Flags().StringVar(&history, "history", filepath.Join(os.TempDir(), "jasm_history.txt"), "readline history file")
	return cmd
}
