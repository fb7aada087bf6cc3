package main

import (
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"sternmux/internal/config"
	"sternmux/internal/gather"
	"sternmux/internal/history"
	"sternmux/internal/logging"
)

func newRootCommand() *cobra.Command {
	var configFlag string

	rootCmd := &cobra.Command{
		Use:   "sternmux [flags] [-- pod-query ...]",
		Short: "Merge and reformat logs streamed from multiple cluster contexts",
		Long: "sternmux runs one stern process per kubectl context, merges their\n" +
			"output into a single stream, and reformats each line into a fixed\n" +
			"context/pod/container/timestamp layout. Everything after \"--\" is\n" +
			"passed to every stern invocation as the pod query.",
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGather(cmd, args, configFlag)
		},
	}

	rootCmd.PersistentFlags().StringVar(&configFlag, "config", "", "Configuration file path")

	flags := rootCmd.Flags()
	flags.StringSliceP("context", "c", nil, `Contexts to stream from ("all" expands via kubectl)`)
	flags.BoolP("all-at-once", "a", false, "Stream every context concurrently")
	flags.BoolP("skip-invalid-messages", "k", false, "Drop lines that are not valid stern JSON")
	flags.StringSliceP("include-container", "i", nil, `Only show these containers ("all" disables the filter)`)
	flags.Bool("fix-up-messages", true, "Strip redundant leading timestamps from message bodies")
	flags.BoolP("pretty-print", "p", false, "Render embedded JSON objects across indented lines")
	flags.StringP("since", "t", "1h", "Time window passed to stern (e.g. 5s, 2m, 3h)")
	flags.BoolP("follow", "f", false, "Keep streaming until interrupted")
	flags.BoolP("quiet", "q", false, "Suppress log lines on stdout (save file still written)")
	flags.BoolP("save", "s", false, "Also write output to a file")
	flags.StringP("save-path", "o", "", "Save file path (implies --save; default: generated name)")
	flags.BoolP("blank-line-after-entry", "b", false, "Print a blank line after every entry")
	flags.Bool("space-after-message", true, "Append one space after each message")
	flags.StringP("work-dir", "w", "", "Directory to change into before opening the save file")
	flags.Bool("stern-defaults", true, "Pass the standard stern argument set")
	flags.IntP("terminate-grace", "g", 5, "Seconds between SIGTERM and SIGKILL on shutdown")
	flags.String("log-level", "", "Diagnostic log level (debug, info, warn, error)")
	flags.String("log-format", "", "Diagnostic log format (text, json)")
	flags.Bool("no-history", false, "Do not record this run in the history database")

	rootCmd.AddCommand(newContextsCommand())
	rootCmd.AddCommand(newHistoryCommand(&configFlag))
	rootCmd.AddCommand(newConfigCommand(&configFlag))
	rootCmd.AddCommand(newCheckCommand())

	return rootCmd
}

func runGather(cmd *cobra.Command, args []string, configPath string) error {
	cfg, err := loadGatherConfig(cmd, args, configPath)
	if err != nil {
		return err
	}

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return err
	}

	var store *history.Store
	noHistory, _ := cmd.Flags().GetBool("no-history")
	if cfg.History.Enabled && !noHistory {
		path, err := config.ExpandPath(cfg.History.Path)
		if err == nil {
			store, err = history.Open(path)
		}
		if err != nil {
			// History is bookkeeping, not output; a broken database must
			// not block the run.
			logger.Warn("history disabled", "error", err)
			store = nil
		}
	}
	if store != nil {
		defer store.Close()
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runner := gather.New(gather.Options{
		Config:      cfg,
		Logger:      logger,
		Stdout:      os.Stdout,
		CommandLine: commandLine(),
		History:     store,
	})
	return runner.Run(ctx)
}

// loadGatherConfig layers flag overrides on top of the config file. Only
// flags the user actually set override file values.
func loadGatherConfig(cmd *cobra.Command, args []string, configPath string) (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("context") {
		cfg.Gather.Contexts, _ = flags.GetStringSlice("context")
	}
	if flags.Changed("all-at-once") {
		cfg.Gather.AllAtOnce, _ = flags.GetBool("all-at-once")
	}
	if flags.Changed("skip-invalid-messages") {
		cfg.Gather.SkipInvalid, _ = flags.GetBool("skip-invalid-messages")
	}
	if flags.Changed("include-container") {
		cfg.Gather.IncludeContainers, _ = flags.GetStringSlice("include-container")
	}
	if flags.Changed("fix-up-messages") {
		cfg.Gather.FixUpMessages, _ = flags.GetBool("fix-up-messages")
	}
	if flags.Changed("pretty-print") {
		cfg.Gather.PrettyPrint, _ = flags.GetBool("pretty-print")
	}
	if flags.Changed("since") {
		cfg.Gather.Since, _ = flags.GetString("since")
	}
	if flags.Changed("follow") {
		cfg.Gather.Follow, _ = flags.GetBool("follow")
	}
	if flags.Changed("quiet") {
		cfg.Gather.Quiet, _ = flags.GetBool("quiet")
	}
	if flags.Changed("save") {
		cfg.Gather.Save, _ = flags.GetBool("save")
	}
	if flags.Changed("save-path") {
		cfg.Gather.SavePath, _ = flags.GetString("save-path")
		cfg.Gather.Save = true
	}
	if flags.Changed("blank-line-after-entry") {
		cfg.Gather.BlankLineAfterEntry, _ = flags.GetBool("blank-line-after-entry")
	}
	if flags.Changed("space-after-message") {
		cfg.Gather.SpaceAfterMessage, _ = flags.GetBool("space-after-message")
	}
	if flags.Changed("work-dir") {
		cfg.Gather.WorkDir, _ = flags.GetString("work-dir")
	}
	if flags.Changed("stern-defaults") {
		cfg.Gather.SternDefaults, _ = flags.GetBool("stern-defaults")
	}
	if flags.Changed("terminate-grace") {
		cfg.Gather.TerminateGraceSeconds, _ = flags.GetInt("terminate-grace")
	}
	if flags.Changed("log-level") {
		cfg.Logging.Level, _ = flags.GetString("log-level")
	}
	if flags.Changed("log-format") {
		cfg.Logging.Format, _ = flags.GetString("log-format")
	}

	cfg.Gather.PodQuery = args

	if err := cfg.Normalize(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func commandLine() string {
	return strings.Join(os.Args, " ")
}
