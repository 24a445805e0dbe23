package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/colorfulnotion/jasm/jvm"
	"github.com/colorfulnotion/jasm/jvm/program"
	"github.com/colorfulnotion/jasm/log"
	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/spf13/cobra"
)

// benchSeries is one convention/mode combination measured over a range of inputs.
type benchSeries struct {
	Name  string
	Conv  program.Convention
	Mode  jvm.Mode
	Micro []float64 // mean microseconds per run, indexed by input - from
	Steps []uint64
}

func nativeSeries(from, to uint32, repeat int) *benchSeries {
	s := &benchSeries{Name: "native"}
	var sink uint32
	for n := from; n <= to; n++ {
		start := time.Now()
		for i := 0; i < repeat; i++ {
			sink += program.FibReference(n)
		}
		s.Micro = append(s.Micro, float64(time.Since(start).Nanoseconds())/1e3/float64(repeat))
		s.Steps = append(s.Steps, 0)
	}
	log.Trace(log.CLIModule, "native baseline done", "sink", sink)
	return s
}

func runBench(cfg jvm.Config, from, to uint32, repeat int) ([]*benchSeries, error) {
	out := []*benchSeries{nativeSeries(from, to, repeat)}
	for _, conv := range []program.Convention{program.Linked, program.Fast} {
		img, err := program.Fibonacci(conv)
		if err != nil {
			return nil, err
		}
		e := jvm.NewEngine(program.Static(img), cfg)
		if err := e.Create(); err != nil {
			return nil, err
		}
		for _, mode := range []jvm.Mode{jvm.ModeStandard, jvm.ModeInline} {
			s := &benchSeries{Name: fmt.Sprintf("%s/%s", conv, mode), Conv: conv, Mode: mode}
			for n := from; n <= to; n++ {
				start := time.Now()
				for i := 0; i < repeat; i++ {
					rv, err := e.RunMode(n, mode)
					if err != nil {
						return nil, fmt.Errorf("%s n=%d: %w", s.Name, n, err)
					}
					if want := program.FibReference(n); rv.U32() != want {
						return nil, fmt.Errorf("%s n=%d: got %d want %d", s.Name, n, rv.U32(), want)
					}
				}
				elapsed := time.Since(start)
				s.Micro = append(s.Micro, float64(elapsed.Nanoseconds())/1e3/float64(repeat))
				s.Steps = append(s.Steps, e.Context().Steps())
				log.Debug(log.CLIModule, "bench point", "series", s.Name, "n", n, "elapsed", elapsed)
			}
			out = append(out, s)
		}
	}
	return out, nil
}

// printBench writes one row per input. The steps column is the linked standard run.
func printBench(w io.Writer, from uint32, series []*benchSeries) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprint(tw, "n\tsteps")
	for _, s := range series {
		fmt.Fprintf(tw, "\t%s µs", s.Name)
	}
	fmt.Fprintln(tw)
	for i := range series[0].Micro {
		fmt.Fprintf(tw, "%d\t%d", from+uint32(i), series[1].Steps[i])
		for _, s := range series {
			fmt.Fprintf(tw, "\t%.1f", s.Micro[i])
		}
		fmt.Fprintln(tw)
	}
	tw.Flush()
}

func benchChart(from uint32, series []*benchSeries) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title:    "jasm Fibonacci",
			Subtitle: "mean time per run against the native baseline",
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "n"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "µs", Type: "log"}),
	)
	xs := make([]uint32, len(series[0].Micro))
	for i := range xs {
		xs[i] = from + uint32(i)
	}
	line.SetXAxis(xs)
	for _, s := range series {
		data := make([]opts.LineData, 0, len(s.Micro))
		for _, v := range s.Micro {
			data = append(data, opts.LineData{Value: v})
		}
		line.AddSeries(s.Name, data)
	}
	return line
}

func writeChart(path string, line *charts.Line) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	page := components.NewPage()
	page.AddCharts(line)
	return page.Render(f)
}

func newBenchCmd(a *app) *cobra.Command {
	var (
		vf        vmFlags
		from, to  uint32
		repeat    int
		chartPath string
	)
	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Time Fibonacci over a range of inputs for both conventions and modes",
		RunE: func(cmd *cobra.Command, args []string) error {
			if from < 1 || to < from {
				return fmt.Errorf("invalid range %d..%d", from, to)
			}
			if repeat < 1 {
				repeat = 1
			}
			cfg, err := a.vmConfig(cmd, &vf)
			if err != nil {
				return err
			}
			series, err := runBench(cfg, from, to, repeat)
			if err != nil {
				return err
			}
			printBench(cmd.OutOrStdout(), from, series)
			if chartPath != "" {
				if err := writeChart(chartPath, benchChart(from, series)); err != nil {
					return err
				}
				log.Info(log.CLIModule, "chart written", "path", chartPath)
			}
			return nil
		},
	}
	vf.register(cmd)
	cmd.Flags().Uint32Var(&from, "from", 1, "first input")
	cmd.Flags().Uint32Var(&to, "to", 25, "last input")
	cmd.Flags().IntVar(&repeat, "repeat", 3, "runs per input")
	cmd.Flags().StringVar(&chartPath, "chart", "", "write an HTML line chart to this file")
	return cmd
}
