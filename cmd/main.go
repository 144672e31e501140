package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"transcript-navigator/internal/app"
	"transcript-navigator/internal/config"
	"transcript-navigator/internal/events"
	"transcript-navigator/internal/models"
	"transcript-navigator/internal/service/navigator"
	"transcript-navigator/internal/service/viewport"
	"transcript-navigator/internal/tui"
)

const defaultViewLogFile = "transcript-navigator.log"

type targetFlags struct {
	language  string
	segmentID int64
	at        float64
}

func (f *targetFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.language, "lang", "en", "transcript language code")
	cmd.Flags().Int64Var(&f.segmentID, "segment", 0, "deep-link segment id")
	cmd.Flags().Float64Var(&f.at, "at", 0, "deep-link timestamp in seconds")
}

func (f *targetFlags) target(cmd *cobra.Command) models.DeepLinkTarget {
	var ts *float64
	if cmd.Flags().Changed("at") {
		at := f.at
		ts = &at
	}
	return models.NewDeepLinkTarget(f.segmentID, ts)
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:          "transcript-navigator",
		Short:        "Browse paged video transcripts and jump to deep-linked segments",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", os.Getenv("NAV_CONFIG_FILE"), "path to a TOML config file")

	root.AddCommand(newViewCmd(&configPath), newJumpCmd(&configPath), newWatchCmd(&configPath))
	return root
}

func newViewCmd(configPath *string) *cobra.Command {
	var flags targetFlags

	cmd := &cobra.Command{
		Use:   "view VIDEO_ID",
		Short: "Open the interactive transcript viewer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !isatty.IsTerminal(os.Stdin.Fd()) || !isatty.IsTerminal(os.Stdout.Fd()) {
				return errors.New("view requires an interactive terminal; use jump for headless navigation")
			}

			cfg, err := config.LoadWithFile(*configPath)
			if err != nil {
				return err
			}
			if cfg.Observability.LogFile == "" {
				cfg.Observability.LogFile = defaultViewLogFile
			}

			a, err := app.New(cfg)
			if err != nil {
				return err
			}
			defer a.Shutdown()

			rowHeight := cfg.Navigator.EstimatedRowHeightPx
			vp := viewport.NewMemory(0, rowHeight)
			panel, err := a.NewPanel(vp, vp)
			if err != nil {
				return err
			}
			defer a.ReleasePanel(panel)

			videoID := args[0]
			ui := tui.New(panel, vp, rowHeight, fmt.Sprintf("%s [%s]", videoID, flags.language))

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return a.Run(ctx, func(ctx context.Context) error {
				panel.Update(navigator.Params{
					VideoID:  videoID,
					Language: flags.language,
					Target:   flags.target(cmd),
					Expanded: true,
				})
				return ui.Run(ctx)
			})
		},
	}
	flags.register(cmd)
	return cmd
}

func newJumpCmd(configPath *string) *cobra.Command {
	var (
		flags   targetFlags
		timeout time.Duration
		height  float64
	)

	cmd := &cobra.Command{
		Use:   "jump VIDEO_ID",
		Short: "Resolve a deep link headlessly and print the resulting panel state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			target := flags.target(cmd)
			if target.IsEmpty() {
				return errors.New("jump requires --segment or --at")
			}

			cfg, err := config.LoadWithFile(*configPath)
			if err != nil {
				return err
			}
			a, err := app.New(cfg)
			if err != nil {
				return err
			}
			defer a.Shutdown()

			vp := viewport.NewMemory(height, cfg.Navigator.EstimatedRowHeightPx)
			panel, err := a.NewPanel(vp, vp)
			if err != nil {
				return err
			}
			defer a.ReleasePanel(panel)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			done := make(chan struct{})
			err = a.Run(ctx, func(ctx context.Context) error {
				panel.Update(navigator.Params{
					VideoID:            args[0],
					Language:           flags.language,
					Target:             target,
					Expanded:           true,
					OnDeepLinkComplete: func() { close(done) },
				})

				select {
				case <-done:
					return nil
				case <-time.After(timeout):
					return fmt.Errorf("deep link not resolved within %s", timeout)
				case <-ctx.Done():
					return ctx.Err()
				}
			})
			if err != nil {
				return err
			}

			out := struct {
				State        navigator.State `json:"state"`
				Focused      int             `json:"focusedIndex"`
				Announcement string          `json:"announcement,omitempty"`
			}{
				State:        panel.State(),
				Focused:      vp.Focused(),
				Announcement: vp.Announcement(),
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}
	flags.register(cmd)
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "maximum time to wait for the deep link")
	cmd.Flags().Float64Var(&height, "height", 720, "simulated viewport height in pixels")
	return cmd
}

func newWatchCmd(configPath *string) *cobra.Command {
	var since time.Duration

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Tail navigation and fetch-failure events from Kafka",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadWithFile(*configPath)
			if err != nil {
				return err
			}
			a, err := app.New(cfg)
			if err != nil {
				return err
			}
			defer a.Shutdown()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			out := cmd.OutOrStdout()
			var mu sync.Mutex
			emit := func(rec events.Record) {
				mu.Lock()
				defer mu.Unlock()
				fmt.Fprintf(out, "[%s] %s\n", rec.Topic, rec)
			}

			return a.Run(ctx, func(ctx context.Context) error {
				g, gctx := errgroup.WithContext(ctx)
				for _, topic := range []string{cfg.Kafka.TopicNavigation, cfg.Kafka.TopicFailures} {
					g.Go(func() error {
						return events.Consume(gctx, cfg.Kafka.Brokers, topic, since, emit)
					})
				}
				return g.Wait()
			})
		},
	}
	cmd.Flags().DurationVar(&since, "since", time.Hour, "replay events newer than this")
	return cmd
}
