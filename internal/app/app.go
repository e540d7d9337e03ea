// Package app wires the pipeline together and supervises the
// long-running producers.
package app

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/exiletools/runtracker/internal/classify"
	"github.com/exiletools/runtracker/internal/config"
	"github.com/exiletools/runtracker/internal/event"
	"github.com/exiletools/runtracker/internal/logtail"
	"github.com/exiletools/runtracker/internal/loot"
	"github.com/exiletools/runtracker/internal/notify"
	"github.com/exiletools/runtracker/internal/poeapi"
	"github.com/exiletools/runtracker/internal/sched"
	"github.com/exiletools/runtracker/internal/server"
	"github.com/exiletools/runtracker/internal/stats"
	"github.com/exiletools/runtracker/internal/storage"
	"github.com/exiletools/runtracker/internal/tracker"
)

// Serve runs the full tracker: log tailer, XP poller, scheduler and the
// HTTP surface. It blocks until ctx is cancelled or a producer fails.
func Serve(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	store, err := storage.Open(cfg.DatabasePath)
	if err != nil {
		return err
	}
	defer store.Close()

	scheduler := sched.New(logger)
	defer scheduler.Close()

	classifier := classify.New(logger, cfg.Character)
	extractor := stats.NewExtractor(logger, cfg.Character)
	valuer := loot.NewValuer(logger, store, loot.NewStaticPricer())

	var xp tracker.XPSource
	if cfg.SessionID != "" && cfg.Account != "" && cfg.Character != "" {
		xp = poeapi.New(cfg.Account, cfg.Character, cfg.SessionID)
	}

	hub := notify.NewHub(logger)
	defer hub.Close()
	manager := notify.NewManager(logger, hub)

	if cfg.Discord.Token != "" && cfg.Discord.ChannelID != "" {
		d, err := notify.NewDiscord(cfg.Discord.Token, cfg.Discord.ChannelID)
		if err != nil {
			return err
		}
		defer d.Close()
		manager.Add(d)
	}
	if cfg.Telegram.Token != "" && cfg.Telegram.ChatID != 0 {
		t, err := notify.NewTelegram(cfg.Telegram.Token, cfg.Telegram.ChatID)
		if err != nil {
			return err
		}
		manager.Add(t)
	}

	trk := tracker.New(logger, store, scheduler, extractor, valuer, xp, manager)

	httpServer := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: server.New(logger, store, trk, hub).Handler(),
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		tailer := logtail.New(logger, cfg.ClientLogPath)
		return tailer.Run(ctx, func(raw event.Raw) {
			if ev, ok := classifier.Classify(raw); ok {
				trk.HandleEvent(ev)
			}
		})
	})

	if xp != nil {
		g.Go(func() error {
			return pollXP(ctx, logger, xp, trk, cfg.XPPollInterval())
		})
	}

	g.Go(func() error {
		logger.Info("http listening", "addr", cfg.ListenAddr)
		err := httpServer.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// Replay runs the pipeline once over an existing log file, from the
// beginning, with notifications and the HTTP surface disabled. Used to
// re-import history offline.
func Replay(ctx context.Context, cfg config.Config, logger *slog.Logger, logPath string) error {
	store, err := storage.Open(cfg.DatabasePath)
	if err != nil {
		return err
	}
	defer store.Close()

	scheduler := sched.New(logger)

	classifier := classify.New(logger, cfg.Character)
	extractor := stats.NewExtractor(logger, cfg.Character)
	valuer := loot.NewValuer(logger, store, loot.NewStaticPricer())
	trk := tracker.New(logger, store, scheduler, extractor, valuer, nil, nil)

	tailer := logtail.NewReplay(logger, logPath)
	if err := tailer.Run(ctx, func(raw event.Raw) {
		if ev, ok := classifier.Classify(raw); ok {
			trk.HandleEvent(ev)
		}
	}); err != nil {
		return err
	}

	// Give the tail of the log a chance to close its run.
	if err := trk.TryProcess(nil); err != nil {
		logger.Warn("final run not processed", "error", err)
	}

	scheduler.Close()
	return nil
}

func pollXP(ctx context.Context, logger *slog.Logger, xp tracker.XPSource, trk *tracker.Tracker, interval time.Duration) error {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if trk.AFK() {
				continue
			}
			total, err := xp.GetExperience(ctx)
			if err != nil {
				logger.Warn("xp poll failed", "error", err)
				continue
			}
			trk.RecordXPSample(storage.XPSample{Timestamp: time.Now(), XP: total})
		}
	}
}
