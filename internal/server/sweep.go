package server

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/stridehq/stride/internal/db"
	"gorm.io/gorm"
)

// cronParser uses standard 5-field cron expressions (minute, hour, dom, month, dow).
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// archiveCron fires the nightly archive sweep.
const archiveCron = "30 2 * * *"

// nextCronDuration parses a 5-field cron expression and returns the duration
// until the next fire time. Returns 0 on parse error.
func nextCronDuration(expr string) time.Duration {
	sched, err := cronParser.Parse(expr)
	if err != nil {
		return 0
	}
	next := sched.Next(time.Now())
	d := time.Until(next)
	if d < 0 {
		return 0
	}
	return d
}

// RunArchiveSweeper archives plans whose race date has long passed, on a
// nightly timer. It blocks until ctx is cancelled.
func RunArchiveSweeper(ctx context.Context, gdb *gorm.DB, log *slog.Logger) {
	d := nextCronDuration(archiveCron)
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			n, err := db.ArchiveExpiredPlans(gdb, time.Now().UTC())
			if err != nil {
				log.Error("archive sweep failed", "err", err)
			} else if n > 0 {
				log.Info("archived expired plans", "count", n)
			}
			if d := nextCronDuration(archiveCron); d > 0 {
				timer.Reset(d)
			}
		}
	}
}
