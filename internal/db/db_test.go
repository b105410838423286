package db

import (
	"strings"
	"testing"
	"time"

	"github.com/stridehq/stride/internal/config"
	"github.com/stridehq/stride/internal/models"
)

func TestDSN(t *testing.T) {
	tests := []struct {
		name string
		dc   config.DatabaseConfig
		want string
	}{
		{
			name: "default local",
			dc:   config.DatabaseConfig{User: "root", Host: "127.0.0.1", Port: 3306, Database: "stride"},
			want: "root@tcp(127.0.0.1:3306)/stride?parseTime=true",
		},
		{
			name: "custom host and port",
			dc:   config.DatabaseConfig{User: "stride", Host: "10.0.0.5", Port: 3307, Database: "training"},
			want: "stride@tcp(10.0.0.5:3307)/training?parseTime=true",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DSN(tt.dc)
			if got != tt.want {
				t.Errorf("DSN() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestConnect_UnsupportedDriver(t *testing.T) {
	_, err := Connect(config.DatabaseConfig{Driver: "postgres"})
	if err == nil {
		t.Fatal("expected error for unsupported driver")
	}
	if !strings.Contains(err.Error(), "unsupported driver") {
		t.Errorf("error = %q, want to contain %q", err.Error(), "unsupported driver")
	}
}

func TestAutoMigrate_CreatesTables(t *testing.T) {
	gdb, err := OpenMemory()
	if err != nil {
		t.Fatalf("open memory db: %v", err)
	}
	if err := AutoMigrate(gdb); err != nil {
		t.Fatalf("auto-migrate: %v", err)
	}
	for _, m := range AllModels() {
		if !gdb.Migrator().HasTable(m) {
			t.Errorf("missing table for %T", m)
		}
	}
}

func TestArchiveExpiredPlans(t *testing.T) {
	gdb, err := OpenMemory()
	if err != nil {
		t.Fatalf("open memory db: %v", err)
	}
	if err := AutoMigrate(gdb); err != nil {
		t.Fatalf("auto-migrate: %v", err)
	}

	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	plans := []models.Plan{
		{ID: "p-old", Name: "spring marathon", RaceDate: now.AddDate(0, 0, -30), Status: models.PlanActive},
		{ID: "p-recent", Name: "just raced", RaceDate: now.AddDate(0, 0, -3), Status: models.PlanActive},
		{ID: "p-upcoming", Name: "fall 50k", RaceDate: now.AddDate(0, 1, 0), Status: models.PlanActive},
		{ID: "p-draft", Name: "old draft", RaceDate: now.AddDate(0, 0, -60), Status: models.PlanDraft},
	}
	if err := gdb.Create(&plans).Error; err != nil {
		t.Fatalf("seed plans: %v", err)
	}

	n, err := ArchiveExpiredPlans(gdb, now)
	if err != nil {
		t.Fatalf("archive: %v", err)
	}
	if n != 1 {
		t.Errorf("archived = %d, want 1", n)
	}

	var old models.Plan
	if err := gdb.First(&old, "id = ?", "p-old").Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if old.Status != models.PlanArchived {
		t.Errorf("p-old status = %q, want ARCHIVED", old.Status)
	}
	var draft models.Plan
	if err := gdb.First(&draft, "id = ?", "p-draft").Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if draft.Status != models.PlanDraft {
		t.Errorf("p-draft status = %q, want DRAFT (drafts are never auto-archived)", draft.Status)
	}
}

func TestSeedDemoPlan(t *testing.T) {
	gdb, err := OpenMemory()
	if err != nil {
		t.Fatalf("open memory db: %v", err)
	}
	if err := AutoMigrate(gdb); err != nil {
		t.Fatalf("auto-migrate: %v", err)
	}

	raceDate := time.Date(2026, 11, 22, 0, 0, 0, 0, time.UTC) // a Sunday
	p, err := SeedDemoPlan(gdb, "demo", raceDate)
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	if p.WeekCount != 12 {
		t.Errorf("WeekCount = %d, want 12", p.WeekCount)
	}

	var weeks []models.Week
	if err := gdb.Where("plan_id = ?", p.ID).Order("idx").Find(&weeks).Error; err != nil {
		t.Fatalf("load weeks: %v", err)
	}
	if len(weeks) != 12 {
		t.Fatalf("weeks = %d, want 12", len(weeks))
	}
	for i, w := range weeks {
		if w.Index != i+1 {
			t.Errorf("week %d index = %d", i, w.Index)
		}
		if w.StartDate == nil || w.StartDate.Weekday() != time.Monday {
			t.Errorf("week %d does not start on a Monday: %v", i+1, w.StartDate)
		}
		var days int64
		gdb.Model(&models.Day{}).Where("week_id = ?", w.ID).Count(&days)
		if days != 7 {
			t.Errorf("week %d has %d days, want 7", i+1, days)
		}
	}
	// Last week ends just before the race.
	last := weeks[11]
	if !last.StartDate.AddDate(0, 0, 7).After(raceDate) {
		t.Errorf("final week start %v too early for race on %v", last.StartDate, raceDate)
	}

	// Every week carries the standard layout: two key sessions and a rest day.
	var keys int64
	gdb.Model(&models.Activity{}).Where("priority = ?", "KEY").Count(&keys)
	if keys != 24 {
		t.Errorf("key sessions = %d, want 24", keys)
	}
}
