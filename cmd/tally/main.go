package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/tallybot/tally/internal/bot"
	"github.com/tallybot/tally/internal/command"
	"github.com/tallybot/tally/internal/config"
	"github.com/tallybot/tally/internal/discord"
	"github.com/tallybot/tally/internal/env"
	"github.com/tallybot/tally/internal/live"
	"github.com/tallybot/tally/internal/scan"
	"github.com/tallybot/tally/internal/store"
)

const eventTimeout = 30 * time.Second

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx); err != nil && err != context.Canceled {
		logrus.WithError(err).Fatal("exiting")
	}
}

func run(ctx context.Context) error {
	environment, err := env.Load()
	if err != nil {
		return err
	}

	if level, err := logrus.ParseLevel(environment.LogLevel); err == nil {
		logrus.SetLevel(level)
	}

	cfg, err := config.Load(environment.ConfigPath)
	if err != nil {
		return err
	}

	session, detach, err := discord.NewSession(discord.NewDialer(discord.Token(environment.DiscordToken)))
	if err != nil {
		return err
	}
	defer detach()
	logrus.WithField("username", session.Username()).Info("connected to Discord")

	bot.ResolveEmojis(cfg, session)

	keeper := store.NewKeeper()
	scanner := scan.New(keeper, session, cfg.ScanConcurrency())
	processor := live.NewProcessor(keeper, session)

	if environment.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		mux.HandleFunc("/healthy", func(w http.ResponseWriter, r *http.Request) {
			latency := session.HeartbeatLatency()
			degraded := 10 * time.Second

			if latency >= degraded {
				http.Error(w, fmt.Sprintf("discord latency=%d ms, expecting < %d ms\n", latency.Milliseconds(), degraded.Milliseconds()), http.StatusInternalServerError)
				return
			}
			fmt.Fprintf(w, "OK\n")
		})
		go func() {
			if err := http.ListenAndServe(environment.MetricsAddr, mux); err != nil {
				logrus.WithError(err).Error("metrics server stopped")
			}
		}()
	}

	// Initial history scan runs in the background so live events and
	// commands are served from the empty first generation right away.
	rescan := func() {
		if err := scanner.Run(ctx, cfg, cfg.ScanMessageLimit()); err != nil && err != scan.ErrScanInProgress {
			logrus.WithError(err).Error("history scan failed")
		}
	}
	go rescan()

	schedule := cron.New()
	if _, err := schedule.AddFunc(environment.RescanSchedule, rescan); err != nil {
		return err
	}
	schedule.Start()
	defer schedule.Stop()

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-session.ReactionEvents():
				if !ok {
					return
				}
				evCtx, cancel := context.WithTimeout(ctx, eventTimeout)
				processor.HandleReactionChange(evCtx, cfg, ev)
				cancel()
			}
		}
	}()

	router := command.NewRouter(environment.CommandPrefix)
	b := bot.New(session, keeper, cfg, scanner, session, session, router)
	return b.Listen(ctx)
}
