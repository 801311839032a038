package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mj1618/deskmirror/internal/config"
	"github.com/mj1618/deskmirror/internal/desktop"
	"github.com/mj1618/deskmirror/internal/output"
)

var observeCmd = &cobra.Command{
	Use:   "observe",
	Short: "Stream desktop change events as JSONL",
	Long: `Mirror the desktop and write one JSON object per change event to stdout.

The first line is a snapshot header with the number of applications and
windows already present; no events are emitted for them. Each following line
is an event: window_created, window_destroyed, window_changed, app_launched,
app_terminated, app_changed or frontmost_changed. "external" is true when
the change was not made by deskmirror. A done trailer ends the stream.

Output is always JSONL regardless of the --format flag.

--play runs the fixture's script of simulated changes (memory and poll
backends) and stops once it has finished, unless --duration is also given.

Use Ctrl+C or --duration to stop observing.`,
	RunE: runObserve,
}

func init() {
	rootCmd.AddCommand(observeCmd)
	observeCmd.Flags().Int("duration", 0, "Max seconds to observe (0 = until Ctrl+C)")
	observeCmd.Flags().Bool("play", false, "Run the fixture's script of simulated changes")
	observeCmd.Flags().Bool("internal", true, "Include events caused by deskmirror itself")
}

func runObserve(cmd *cobra.Command, args []string) error {
	durationSec, _ := cmd.Flags().GetInt("duration")
	play, _ := cmd.Flags().GetBool("play")
	includeInternal, _ := cmd.Flags().GetBool("internal")

	ctx := cmd.Context()
	if durationSec > 0 {
		var cancel func()
		ctx, cancel = contextWithSeconds(ctx, durationSec)
		defer cancel()
	}

	s, err := openSession(ctx, cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetEscapeHTML(false)
	var encMu sync.Mutex
	emit := func(v interface{}) {
		encMu.Lock()
		defer encMu.Unlock()
		if err := enc.Encode(v); err != nil {
			logger.Warn("write event failed", zap.Error(err))
		}
	}

	start := time.Now()
	emit(map[string]interface{}{
		"type":         "snapshot",
		"ts":           start.Unix(),
		"backend":      cfg.Desktop.Backend,
		"applications": len(s.state.RunningApplications()),
		"windows":      len(s.state.KnownWindows()),
	})

	var (
		countMu    sync.Mutex
		eventCount int
	)
	unsubscribe := desktop.SubscribeAll(s.state, func(e desktop.Event) {
		r := output.NewEventRecord(e, time.Now())
		if !r.External && !includeInternal {
			return
		}
		emit(r)
		countMu.Lock()
		eventCount++
		countMu.Unlock()
	})

	g, gctx := errgroup.WithContext(ctx)
	if play {
		g.Go(func() error {
			if err := s.play(gctx); err != nil {
				return fmt.Errorf("play: %w", err)
			}
			if durationSec > 0 {
				return nil
			}
			// Give the mirror time to observe the last step, then stop.
			if cfg.Desktop.Backend == config.BackendPoll {
				sleepContext(gctx, 2*cfg.Desktop.PollInterval)
			}
			_ = s.state.Wait(gctx)
			return errStop
		})
	}
	g.Go(func() error {
		select {
		case <-gctx.Done():
		case <-s.state.Done():
			logger.Info("desktop mirror stopped")
		}
		return nil
	})
	err = g.Wait()
	unsubscribe()
	if errors.Is(err, errStop) {
		err = nil
	}

	countMu.Lock()
	n := eventCount
	countMu.Unlock()
	emit(map[string]interface{}{
		"type":    "done",
		"ts":      time.Now().Unix(),
		"elapsed": fmt.Sprintf("%.1fs", time.Since(start).Seconds()),
		"events":  n,
	})
	return err
}
