// Package cli wires the mesisim command-line flags to the config, trace,
// engine, and report packages, in the cobra root-command idiom of
// sarchlab-akita's cmd/root.go.
package cli

import (
	"fmt"
	"os"

	"github.com/rs/xid"
	"github.com/spf13/cobra"

	"github.com/example/mesisim/internal/coherence"
	"github.com/example/mesisim/internal/config"
	"github.com/example/mesisim/internal/engine"
	"github.com/example/mesisim/internal/hooks"
	"github.com/example/mesisim/internal/obslog"
	"github.com/example/mesisim/internal/report"
	"github.com/example/mesisim/internal/trace"
)

var flags struct {
	prefix    string
	setBits   uint
	assoc     int
	blockBits uint
	output    string
	debug     bool
	cores     int
}

var rootCmd = &cobra.Command{
	Use:   "mesisim",
	Short: "mesisim simulates a MESI snooping-bus multiprocessor cache",
	Long: "mesisim replays per-core memory-reference traces through a cycle-accurate " +
		"MESI snooping-bus coherence simulation and reports per-core and bus statistics.",
	RunE: run,
}

func init() {
	fl := rootCmd.Flags()
	fl.StringVar(&flags.prefix, "prefix", "", "trace file prefix (reads <prefix>_proc<id>.trace)")
	fl.UintVarP(&flags.setBits, "set-bits", "s", 2, "number of set-index bits")
	fl.IntVarP(&flags.assoc, "assoc", "E", 2, "cache associativity (lines per set)")
	fl.UintVarP(&flags.blockBits, "block-bits", "b", 5, "number of block-offset bits")
	fl.StringVarP(&flags.output, "output", "o", "", "write the report here instead of stdout")
	fl.BoolVar(&flags.debug, "debug", false, "enable debug logging")
	fl.IntVar(&flags.cores, "cores", config.DefaultNumCores, "number of cores / trace files")

	_ = rootCmd.MarkFlagRequired("prefix")
}

// Execute runs the mesisim root command.
func Execute() error {
	return rootCmd.Execute()
}

func run(cmd *cobra.Command, args []string) error {
	level := obslog.LevelInfo
	if flags.debug {
		level = obslog.LevelDebug
	}
	log := obslog.New(level, "[mesisim] ")

	cfg := &config.Config{
		TracePrefix: flags.prefix,
		Geometry: coherence.Geometry{
			SetBits:   flags.setBits,
			Assoc:     flags.assoc,
			BlockBits: flags.blockBits,
		},
		NumCores:   flags.cores,
		OutputPath: flags.output,
		Debug:      flags.debug,
	}
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	sources := make([]trace.Source, cfg.NumCores)
	for i := 0; i < cfg.NumCores; i++ {
		src, err := trace.Open(cfg.TracePrefix, i)
		if err != nil {
			return err
		}
		defer src.Close()
		sources[i] = src
	}

	hb := hooks.New()
	hb.OnTransaction(func(ev hooks.TransactionEvent) {
		log.Debugf("cycle=%d core=%d %s addr=0x%x bytes=%d hold=%d",
			ev.Cycle, ev.Core, ev.Kind, ev.Address, ev.Bytes, ev.HoldCycle)
	})

	eng := engine.New(cfg.Geometry, sources, hb)
	if err := eng.Run(); err != nil {
		return err
	}
	if cfg.Debug {
		log.Debugf("final cache state:\n%s", eng.DebugDump())
	}

	out := os.Stdout
	if cfg.OutputPath != "" {
		f, err := os.Create(cfg.OutputPath)
		if err != nil {
			return fmt.Errorf("opening output file: %w", err)
		}
		defer f.Close()
		out = f
	}

	rpt := report.Run{
		Config: report.Config{
			TracePrefix: cfg.TracePrefix,
			Geometry:    cfg.Geometry,
			NumCores:    cfg.NumCores,
		},
		Cores:    eng.CoreStats(),
		Cycles:   eng.Cycle(),
		BusTxns:  eng.BusTransactions(),
		BusBytes: eng.BusTrafficBytes(),
		RunID:    xid.New().String(),
	}
	return report.Write(out, rpt)
}
