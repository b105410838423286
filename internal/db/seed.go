package db

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/stridehq/stride/internal/models"
	"gorm.io/gorm"
)

// demoWeeks is the length of the seeded demo plan.
const demoWeeks = 12

// SeedDemoPlan creates a realistic demo plan ending the week of raceDate,
// so the generate/apply pipeline can be exercised locally without any
// import tooling. Returns the created plan.
func SeedDemoPlan(gdb *gorm.DB, name string, raceDate time.Time) (*models.Plan, error) {
	p := models.Plan{
		ID:        uuid.NewString(),
		Name:      name,
		RaceDate:  raceDate,
		WeekCount: demoWeeks,
		Status:    models.PlanActive,
	}

	raceMonday := mondayOf(raceDate)
	err := gdb.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&p).Error; err != nil {
			return fmt.Errorf("db: seed plan: %w", err)
		}
		for wi := 1; wi <= demoWeeks; wi++ {
			start := raceMonday.AddDate(0, 0, -7*(demoWeeks-wi))
			end := start.AddDate(0, 0, 6)
			week := models.Week{
				ID:        uuid.NewString(),
				PlanID:    p.ID,
				Index:     wi,
				StartDate: &start,
				EndDate:   &end,
			}
			if err := tx.Create(&week).Error; err != nil {
				return fmt.Errorf("db: seed week %d: %w", wi, err)
			}
			for dow := 1; dow <= 7; dow++ {
				day := models.Day{ID: uuid.NewString(), WeekID: week.ID, DayOfWeek: dow}
				if err := tx.Create(&day).Error; err != nil {
					return fmt.Errorf("db: seed day %d of week %d: %w", dow, wi, err)
				}
				for _, a := range demoActivities(wi, dow) {
					a.DayID = day.ID
					if err := tx.Create(&a).Error; err != nil {
						return fmt.Errorf("db: seed activity on day %d of week %d: %w", dow, wi, err)
					}
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// demoActivities lays out a conventional build: quality on Tuesday and
// Thursday, strength Wednesday, long run Saturday, rest Monday and Friday,
// easy Sunday. Durations grow with the week index and back off every
// fourth week.
func demoActivities(week, dow int) []models.Activity {
	ramp := float64(week)
	if week%4 == 0 {
		ramp *= 0.7 // recovery week
	}
	switch dow {
	case 1, 5:
		return []models.Activity{activity("REST", "", "Rest day", "OPTIONAL", nil)}
	case 2:
		d := 35 + 2*ramp
		return []models.Activity{activity("RUN", "tempo", "Tempo run", "KEY", &d)}
	case 3:
		d := 45.0
		return []models.Activity{activity("STRENGTH", "", "Strength: legs and core", "MEDIUM", &d)}
	case 4:
		d := 40 + ramp
		return []models.Activity{activity("RUN", "hills", "Hill repeats", "MEDIUM", &d)}
	case 6:
		d := 70 + 8*ramp
		return []models.Activity{activity("RUN", "lrl", "Long run", "KEY", &d)}
	case 7:
		d := 30 + ramp
		return []models.Activity{activity("RUN", "", "Easy recovery run", "OPTIONAL", &d)}
	}
	return nil
}

func activity(typ, subtype, title, priority string, duration *float64) models.Activity {
	return models.Activity{
		ID:          uuid.NewString(),
		Type:        typ,
		Subtype:     subtype,
		Title:       title,
		Priority:    priority,
		DurationMin: duration,
	}
}

func mondayOf(t time.Time) time.Time {
	t = time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	dow := int(t.Weekday())
	if dow == 0 {
		dow = 7
	}
	return t.AddDate(0, 0, -(dow - 1))
}
