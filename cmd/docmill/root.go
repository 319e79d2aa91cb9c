package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/marek/docmill/internal/config"
	"github.com/marek/docmill/internal/controller"
	"github.com/marek/docmill/internal/history"
	"github.com/marek/docmill/internal/logger"
	"github.com/marek/docmill/internal/remote"
	"github.com/marek/docmill/internal/service"
)

// version is stamped at build time via -ldflags.
var version = "dev"

// app holds everything the subcommands share: configuration, the wired
// services, and the optional history ledger.
type app struct {
	cfg       *config.Config
	log       *logger.Logger
	client    *remote.Client
	ctrl      *controller.Controller
	retriever *service.Retriever
	hist      *history.Store // nil when the ledger is disabled or unavailable
	yes       bool
}

type rootFlags struct {
	configPath string
	serviceURL string
	outputDir  string
	yes        bool
	verbose    bool
}

func newRootCmd() *cobra.Command {
	a := &app{}
	flags := &rootFlags{}

	cmd := &cobra.Command{
		Use:   "docmill",
		Short: "Send documents through a conversion service",
		Long: `docmill uploads .docx and .pdf documents to a conversion service,
follows the job until it settles, and downloads the converted results.

The service endpoint, output directory, and history ledger are read from
./configs/config.yaml (or --config) and can be overridden per invocation.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(flags)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			a.close()
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&flags.configPath, "config", "", "path to config file")
	pf.StringVar(&flags.serviceURL, "service-url", "", "conversion service base URL")
	pf.StringVar(&flags.outputDir, "output-dir", "", "directory for downloaded results")
	pf.BoolVarP(&flags.yes, "yes", "y", false, "assume yes for every prompt")
	pf.BoolVarP(&flags.verbose, "verbose", "v", false, "log at debug level")

	cmd.AddCommand(
		newConvertCmd(a),
		newSubmitCmd(a),
		newStatusCmd(a),
		newDownloadCmd(a),
		newHistoryCmd(a),
	)

	return cmd
}

// init loads configuration, applies flag overrides, and wires the client
// stack. Called once by the root command before any subcommand runs.
func (a *app) init(flags *rootFlags) error {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if flags.serviceURL != "" {
		cfg.Service.BaseURL = flags.serviceURL
	}
	if flags.outputDir != "" {
		cfg.Output.Dir = flags.outputDir
	}
	a.cfg = cfg
	a.yes = flags.yes

	// Terminal output belongs to the user; logs go to stderr and stay
	// quiet unless asked for.
	level := "warn"
	if flags.verbose {
		level = "debug"
	}
	a.log = logger.New(&logger.Config{
		Level:       level,
		Format:      "text",
		Output:      os.Stderr,
		ServiceName: "docmill",
	})
	logger.SetDefaultLogger(a.log)

	a.client = remote.NewClient(&remote.Config{
		BaseURL: cfg.Service.BaseURL,
		Timeout: cfg.Service.Timeout,
	})
	sub := service.NewSubmitter(a.client, a.log)
	mon := service.NewMonitor(a.client, a.log, nil)
	a.retriever = service.NewRetriever(a.client, a.log, cfg.Output.Dir)
	a.ctrl = controller.New(sub, mon, a.retriever, a.log)

	if cfg.History.Enabled {
		hist, err := history.Open(cfg.History.Path)
		if err != nil {
			a.log.WithError(err).Warn("history ledger unavailable, continuing without it")
		} else {
			a.hist = hist
		}
	}

	return nil
}

func (a *app) close() {
	if a.hist != nil {
		if err := a.hist.Close(); err != nil {
			a.log.WithError(err).Warn("failed to close history ledger")
		}
	}
}
