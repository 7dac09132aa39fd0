package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/tliron/commonlog"

	"github.com/chazu/clasp/compiler"
	"github.com/chazu/clasp/server"
	"github.com/chazu/clasp/vm"
	"github.com/chazu/clasp/vm/image"
)

func (c *cli) runCmd() *cobra.Command {
	var (
		trace     bool
		threshold int
		stats     bool
		profile   bool
		timeout   time.Duration
	)
	cmd := &cobra.Command{
		Use:   "run [file]",
		Short: "Run a source file or compiled image and print its result",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := c.sourcePath(args)
			if err != nil {
				return err
			}
			prog, err := c.loadProgram(path)
			if err != nil {
				return err
			}

			if !cmd.Flags().Changed("trace") {
				trace = c.cfg.VM.Trace
			}
			if !cmd.Flags().Changed("collect-threshold") {
				threshold = c.cfg.VM.CollectThreshold
			}
			vmLog := commonlog.GetLogger("clasp.vm")
			opts := []vm.Option{
				vm.WithCollectThreshold(threshold),
				vm.WithLogger(vmLog),
			}
			tracers, prof := runTracers(cmd.OutOrStdout(), vmLog, trace, profile)
			if len(tracers) > 0 {
				opts = append(opts, vm.WithTracer(vm.Tee(tracers...)))
			}

			ctx := cmd.Context()
			if timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}

			m := vm.NewVM(prog.Code, opts...)
			start := time.Now()
			v, err := m.ExecContext(ctx, prog.Entry)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), m.Describe(v))

			if stats {
				s := m.Pool().Stats()
				fmt.Fprintf(cmd.ErrOrStderr(), "steps: %d\ncollections: %d\nlive: %d functions, %d contexts\ntime: %s\n",
					m.Steps(), m.Collections(), s.Functions, s.Contexts, time.Since(start))
			}
			if prof != nil {
				prof.Report(cmd.ErrOrStderr(), prog.Labels)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&trace, "trace", false, "print every instruction and the current frame")
	cmd.Flags().IntVar(&threshold, "collect-threshold", 0, "collect whenever the pool reaches this many objects (0 = only at exit)")
	cmd.Flags().BoolVar(&stats, "stats", false, "print execution statistics to stderr")
	cmd.Flags().BoolVar(&profile, "profile", false, "print instruction and call counts to stderr")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "abort execution after this long (0 = no limit)")
	return cmd
}

// runTracers picks the trace sinks for one run. Without --trace, instructions
// go to the vm logger when it is at debug level.
func runTracers(out io.Writer, vmLog commonlog.Logger, trace, profile bool) ([]vm.Tracer, *vm.Profiler) {
	var tracers []vm.Tracer
	if trace {
		tracers = append(tracers, vm.NewWriterTracer(out))
	} else if vmLog.AllowLevel(commonlog.Debug) {
		tracers = append(tracers, vm.NewLogTracer(vmLog))
	}
	var prof *vm.Profiler
	if profile {
		prof = vm.NewProfiler()
		tracers = append(tracers, prof)
	}
	return tracers, prof
}

func (c *cli) tokensCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tokens [file]",
		Short: "Print the token stream of a source file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := c.sourcePath(args)
			if err != nil {
				return err
			}
			data, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			toks, err := compiler.TokensFromSource(string(data))
			if err != nil {
				return fmt.Errorf("%s:\n%w", path, err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), toks)
			return nil
		},
	}
}

func (c *cli) buildCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "build [file]",
		Short: "Compile a source file to an image",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := c.sourcePath(args)
			if err != nil {
				return err
			}
			data, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			prog, err := compileSource(path, data)
			if err != nil {
				return err
			}
			if out == "" {
				out = strings.TrimSuffix(path, filepath.Ext(path)) + image.Extension
			}
			if err := image.WriteFile(out, prog); err != nil {
				return err
			}
			log.Infof("wrote %s (%d instructions)", out, len(prog.Code))
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "output", "o", "", "image path (default: input with "+image.Extension+")")
	return cmd
}

func (c *cli) disasmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "disasm [file]",
		Short: "Print the instruction listing of a source file or image",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := c.sourcePath(args)
			if err != nil {
				return err
			}
			prog, err := c.loadProgram(path)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), prog.Disassemble())
			return nil
		},
	}
}

func (c *cli) lspCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "lsp",
		Short: "Run the language server on stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s := server.NewLSP(version, vm.WithCollectThreshold(c.cfg.VM.CollectThreshold))
			defer s.Close()
			return s.Run()
		},
	}
}
