// Command completectl is the student-device side of phase completion. It
// submits a phase completion to the backend, queues it locally when the
// network is down, and can run as a daemon that periodically redrives the
// queue.
//
// Examples:
//
//	completectl -api http://localhost:8080/api/v1 -user s1 -lesson vat-basics -phase 2
//	completectl -api http://localhost:8080/api/v1 -user s1 -drain
//	completectl -api http://localhost:8080/api/v1 -user s1 -watch -interval 30s
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/ledgerlab/go-lessons-backend/internal/client"
	"github.com/ledgerlab/go-lessons-backend/internal/jobs"
	"github.com/ledgerlab/go-lessons-backend/internal/sysutil"
)

func defaultQueuePath() string {
	if dir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(dir, "completectl", "queue.json")
	}
	return "completion-queue.json"
}

func main() {
	_ = godotenv.Load()

	var (
		apiURL    = flag.String("api", sysutil.FirstNonEmpty(os.Getenv("LESSONS_API_URL"), "http://localhost:8080/api/v1"), "API base URL including base path")
		token     = flag.String("token", os.Getenv("LESSONS_API_TOKEN"), "bearer token (optional, falls back to -user header auth)")
		userID    = flag.String("user", os.Getenv("LESSONS_USER_ID"), "student identity")
		lessonRef = flag.String("lesson", "", "lesson ID or slug to complete a phase of")
		phase     = flag.Int("phase", 0, "phase number to complete")
		queueFile = flag.String("queue", defaultQueuePath(), "path of the local completion queue")
		drainOnly = flag.Bool("drain", false, "only drain the queue, do not complete a phase")
		watch     = flag.Bool("watch", false, "keep running and redrive the queue periodically")
		interval  = flag.Duration("interval", time.Minute, "redrive interval in watch mode")
		logLevel  = flag.String("log-level", "info", "debug|info|warn|error")
	)
	flag.Parse()

	sysutil.SetLogLevel(*logLevel)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	if *userID == "" {
		log.Fatal().Msg("-user (or LESSONS_USER_ID) is required")
	}
	if !*drainOnly && !*watch && (*lessonRef == "" || *phase < 1) {
		log.Fatal().Msg("-lesson and -phase are required unless -drain or -watch is set")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store := client.NewFileQueueStore(*queueFile)
	sender := &client.HTTPSender{BaseURL: *apiURL, Token: *token}

	// Construction clears the queue on user switch and drains leftovers.
	coord, err := client.NewCoordinator(ctx, store, sender, *userID, *lessonRef, *phase)
	if err != nil {
		log.Fatal().Err(err).Msg("coordinator init failed")
	}
	coord.OnError = func(err error) {
		log.Warn().Str("kind", client.Classify(err).String()).Err(err).Msg("completion attempt failed")
	}

	if !*drainOnly && *lessonRef != "" && *phase >= 1 {
		res, err := coord.CompletePhase(ctx)
		if err == nil && res != nil {
			log.Info().
				Int("phase", res.PhaseNumber).
				Bool("next_unlocked", res.NextPhaseUnlocked).
				Bool("replayed", res.Replayed).
				Msg(res.Message)
		}
	}

	if *watch {
		sched := jobs.NewRedriveScheduler(coord, *interval)
		sched.Start()
		defer sched.Stop()
		log.Info().Dur("interval", *interval).Msg("watching completion queue")
		<-ctx.Done()
	}
}
