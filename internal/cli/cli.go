package cli

import (
	"io"
	"os"

	"gaia-strings/internal/config"
	"gaia-strings/internal/extractor"
	"gaia-strings/internal/metrics"
	"gaia-strings/internal/parser"
	"gaia-strings/internal/report"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

// Execute runs the CLI application.
func Execute() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	if err := NewRootCmd(afero.NewOsFs(), os.Stderr).Execute(); err != nil {
		log.Error().Err(err).Msg("Command failed")
		os.Exit(1)
	}
}

// NewRootCmd builds the command tree. Logs go to logOut; tests pass a
// buffer and an in-memory filesystem.
func NewRootCmd(fs afero.Fs, logOut io.Writer) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "gaia-strings",
		Short:         "String-table tools for extracted ROM assembly listings",
		Long:          "Scans the .asm listings written by the ROM database engine for asciistring lines and builds a strings.json lookup table, or writes an edited table back into the listings.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := rootCmd.PersistentFlags()
	pf.String("extension", parser.DefaultExtension, "Listing file suffix to scan")
	pf.String("encoding", "utf-8", "Character encoding of the listings (e.g. utf-8, shift_jis, euc-jp)")
	pf.String("format", "json", "Table format: json or yaml")
	pf.String("log-level", "info", "Log level: debug, info, warn, error")
	pf.String("log-format", "console", "Log format: console or json")
	pf.String("metrics-file", "", "Write Prometheus metrics to this file after the run")

	rootCmd.AddCommand(extractCmd(fs, logOut))
	rootCmd.AddCommand(injectCmd(fs, logOut))

	return rootCmd
}

func extractCmd(fs afero.Fs, logOut io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "extract [root]",
		Short: "Extract asciistring entries from .asm listings into <root>/strings.json",
		Long: `Recursively scans root (default ./extracted/system) for listing files, collects every
line of the form "asciistring_<HEX> |<content>|" and writes the merged table into root.
When two files define the same id, the file found later wins.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cmd.Flags())
			if err != nil {
				return err
			}
			if len(args) == 1 {
				cfg.Root = args[0]
			}
			return runExtract(fs, newLogger(cfg, logOut), cfg)
		},
	}
}

func injectCmd(fs afero.Fs, logOut io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "inject <table> [root]",
		Short: "Write the content of a string table back into the .asm listings",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cmd.Flags())
			if err != nil {
				return err
			}
			if len(args) == 2 {
				cfg.Root = args[1]
			}
			return runInject(fs, newLogger(cfg, logOut), cfg, args[0])
		},
	}
}

// newLogger builds the zerolog logger for a run from cfg.
func newLogger(cfg *config.Config, out io.Writer) zerolog.Logger {
	if cfg.LogFormat == "console" {
		out = zerolog.ConsoleWriter{Out: out}
	}
	return zerolog.New(out).Level(cfg.LogLevel).With().Timestamp().Logger()
}

func newExtractor(fs afero.Fs, logger zerolog.Logger, cfg *config.Config) (*extractor.Extractor, *metrics.Metrics, error) {
	p, err := parser.NewAsmParser(fs, cfg.Extension, cfg.Encoding)
	if err != nil {
		return nil, nil, err
	}
	m := metrics.New()
	ex, err := extractor.New(extractor.Options{
		Fs:       fs,
		Parser:   p,
		Reporter: report.NewZerolog(logger),
		Metrics:  m,
		Format:   cfg.Format,
	})
	if err != nil {
		return nil, nil, err
	}
	return ex, m, nil
}

// runExtract handles the `extract` command.
func runExtract(fs afero.Fs, logger zerolog.Logger, cfg *config.Config) error {
	ex, m, err := newExtractor(fs, logger, cfg)
	if err != nil {
		return err
	}

	sum, runErr := ex.Run(cfg.Root)
	writeMetrics(logger, m, cfg.MetricsFile)
	if runErr != nil {
		logger.Error().Err(runErr).Msg("Extraction failed")
		return runErr
	}

	logger.Info().
		Int("files", sum.FilesFound).
		Int("total", sum.Total).
		Int("keys", sum.Keys).
		Str("output", sum.OutputPath).
		Msg("Extraction complete")
	return nil
}

// runInject handles the `inject` command.
func runInject(fs afero.Fs, logger zerolog.Logger, cfg *config.Config, tablePath string) error {
	ex, m, err := newExtractor(fs, logger, cfg)
	if err != nil {
		return err
	}

	_, runErr := ex.Inject(cfg.Root, tablePath)
	writeMetrics(logger, m, cfg.MetricsFile)
	if runErr != nil {
		logger.Error().Err(runErr).Msg("Injection failed")
		return runErr
	}
	return nil
}

func writeMetrics(logger zerolog.Logger, m *metrics.Metrics, path string) {
	if path == "" {
		return
	}
	if err := m.WriteTextfile(path); err != nil {
		logger.Warn().Err(err).Str("path", path).Msg("Failed to write metrics")
		return
	}
	logger.Debug().Str("path", path).Msg("Metrics written")
}
