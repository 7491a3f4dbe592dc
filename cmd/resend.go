package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/teemow/resender/internal/config"
	"github.com/teemow/resender/internal/exclusion"
	"github.com/teemow/resender/internal/gmail"
	"github.com/teemow/resender/internal/google"
	"github.com/teemow/resender/internal/logging"
	"github.com/teemow/resender/internal/prompt"
	"github.com/teemow/resender/internal/resend"
	"github.com/teemow/resender/internal/schedule"
)

// resendFlags are the command line overrides of a resend run.
type resendFlags struct {
	configFile       string
	dryRun           bool
	interactive      bool
	mode             string
	at               string
	scheduleRun      bool
	executeScheduled bool
	metricsAddr      string
}

func newResendCmd() *cobra.Command {
	var flags resendFlags

	cmd := &cobra.Command{
		Use:   "resend",
		Short: "Resend job applications from the Gmail sent folder",
		Long: `Search the Gmail sent folder for job applications and resend them with a
follow-up note and the original attachments.

Recipients on the exclusion list, recipients that already received
MAX_EMAILS_PER_RECIPIENT emails and duplicates within the run are skipped.
In interactive mode every eligible message is shown for confirmation.

Delivery modes:
  immediate  send each resend right away (default)
  drafts     only create drafts; schedule them yourself in Gmail
  scheduled  create drafts now and send them at --at

With --schedule-run the whole run is registered with the OS scheduler
(schtasks on Windows, at elsewhere) for --at instead of running now.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runResend(cmd, flags)
		},
	}

	cmd.Flags().StringVar(&flags.configFile, "config", "", "Path to a YAML config file")
	cmd.Flags().BoolVar(&flags.dryRun, "dry-run", false, "Log what would be resent without sending (overrides DRY_RUN)")
	cmd.Flags().BoolVar(&flags.interactive, "interactive", true, "Confirm each message before resending (overrides INTERACTIVE_MODE)")
	cmd.Flags().StringVar(&flags.mode, "mode", "", "Delivery mode: immediate, drafts or scheduled (overrides RESEND_MODE)")
	cmd.Flags().StringVar(&flags.at, "at", "", "Delivery time for scheduled mode or --schedule-run: HH:MM or 'YYYY-MM-DD HH:MM'")
	cmd.Flags().BoolVar(&flags.scheduleRun, "schedule-run", false, "Register this run with the OS scheduler for --at instead of running now")
	cmd.Flags().BoolVar(&flags.executeScheduled, schedule.ExecuteScheduledFlag[2:], false, "Run non-interactively as a previously scheduled task")
	cmd.Flags().StringVar(&flags.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address during the run (e.g. :9090)")
	_ = cmd.Flags().MarkHidden(schedule.ExecuteScheduledFlag[2:])

	return cmd
}

// runPlan is the resolved configuration of one invocation.
type runPlan struct {
	cfg    *config.Config
	mode   resend.Mode
	sendAt time.Time
	// registerTask means: hand the run to the OS scheduler and exit.
	registerTask bool
}

// resolvePlan loads the configuration and applies the flags that were set.
func resolvePlan(cmd *cobra.Command, flags resendFlags, now time.Time) (*runPlan, error) {
	cfg, err := config.LoadFromFile(flags.configFile)
	if err != nil {
		return nil, err
	}

	if cmd.Flags().Changed("dry-run") {
		cfg.DryRun = flags.dryRun
	}
	if cmd.Flags().Changed("interactive") {
		cfg.Interactive = flags.interactive
	}
	if flags.executeScheduled {
		cfg.Interactive = false
	}

	modeName := cfg.Mode
	if flags.mode != "" {
		modeName = flags.mode
	}
	mode, err := resend.ParseMode(modeName)
	if err != nil {
		return nil, err
	}

	plan := &runPlan{
		cfg:          cfg,
		mode:         mode,
		registerTask: flags.scheduleRun && !flags.executeScheduled,
	}

	if mode == resend.ModeScheduled || plan.registerTask {
		if flags.at == "" {
			return nil, fmt.Errorf("--at is required for scheduled delivery")
		}
		plan.sendAt, err = schedule.ParseTime(flags.at, now)
		if err != nil {
			return nil, err
		}
	}

	return plan, nil
}

func runResend(cmd *cobra.Command, flags resendFlags) error {
	ctx, cancel := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	out := cmd.OutOrStdout()

	plan, err := resolvePlan(cmd, flags, time.Now())
	if err != nil {
		return err
	}
	cfg := plan.cfg

	slogger, closeLog, err := logging.Setup(logging.Options{
		Level:  cfg.LogLevel,
		File:   cfg.LogFile,
		Format: cfg.LogFormat,
		Stdout: out,
	})
	if err != nil {
		return err
	}
	defer func() { _ = closeLog() }()
	logger := logging.NewSlogAdapter(slogger)

	if plan.registerTask {
		scheduler := schedule.NewTaskScheduler(logger)
		if flags.configFile != "" {
			scheduler.Args = append(scheduler.Args, "--config", flags.configFile)
		}
		task, err := scheduler.Schedule(ctx, plan.sendAt)
		if err == nil {
			fmt.Fprintf(out, "Task %s scheduled for %s.\n", task.Name, task.At.Format("2006-01-02 15:04"))
			fmt.Fprintf(out, "Results will be written to %s.\n", cfg.LogFile)
			return nil
		}
		fmt.Fprintf(out, "Could not schedule the run (%v); falling back to immediate execution.\n", err)
	}

	provider, stopInstrumentation, err := startInstrumentation(ctx, "resend", flags.metricsAddr, nil)
	if err != nil {
		return err
	}
	defer stopInstrumentation()
	metrics := provider.Metrics()

	tokens := google.NewFileTokenProvider(cfg.CredentialsFile, cfg.TokenFile, google.DefaultOAuthScopes...)
	if !tokens.HasToken() {
		return fmt.Errorf("%w: %w at %s, run 'resender auth' first", resend.ErrFatal, google.ErrNoToken, cfg.TokenFile)
	}
	httpClient, err := tokens.HTTPClient(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", resend.ErrFatal, err)
	}

	client, err := gmail.NewClient(ctx, httpClient, gmail.WithMetrics(metrics), gmail.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("%w: %w", resend.ErrFatal, err)
	}

	store, err := exclusion.Load(cfg.ExclusionFile)
	if err != nil {
		return fmt.Errorf("%w: %w", resend.ErrFatal, err)
	}

	decider := resend.AlwaysAccept
	if cfg.Interactive {
		if !prompt.IsTerminal(os.Stdin) {
			logger.Warn("interactive mode without a terminal, answers are read from stdin")
		}
		decider = prompt.NewTerminal(os.Stdin, out)
	}

	printRunHeader(out, plan, store.Len())

	summary, err := resend.RunBatch(ctx, client, store, decider, resend.Settings{
		Options: resend.Options{
			Mode:        plan.mode,
			DryRun:      cfg.DryRun,
			AutoExclude: cfg.AutoExcludeAfterSend,
			MaxPerRun:   cfg.MaxPerRun,
			SendDelay:   cfg.SendDelayDuration(),
			SendAt:      plan.sendAt,
		},
		Keywords:        cfg.JobKeywords,
		PerRecipientCap: cfg.MaxPerRecipient,
		Prefix:          cfg.ResendPrefix,
		Preamble:        cfg.ResendMessage,
	}, logger, metrics)
	if err != nil {
		return err
	}

	fmt.Fprintln(out)
	summary.Print(out)

	if ctx.Err() != nil {
		logger.Info("run interrupted", "processed", summary.Processed())
	}
	return nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func printRunHeader(w io.Writer, plan *runPlan, excluded int) {
	cfg := plan.cfg
	fmt.Fprintf(w, "Mode: %s\n", plan.mode)
	if plan.mode == resend.ModeScheduled {
		fmt.Fprintf(w, "Drafts will be sent at %s\n", plan.sendAt.Format("2006-01-02 15:04"))
	}
	fmt.Fprintf(w, "Excluded recipients: %d\n", excluded)
	fmt.Fprintf(w, "Max emails per recipient: %d\n", cfg.MaxPerRecipient)
	if cfg.DryRun {
		fmt.Fprintln(w, "DRY RUN: no emails will be sent")
	}
	if cfg.Interactive {
		fmt.Fprintln(w, "Interactive mode: you will be asked before each resend")
	}
}
