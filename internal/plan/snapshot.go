// Package plan provides in-memory snapshots of persisted training plans and
// the lock-state derivation used by the patch engine.
package plan

import (
	"fmt"
	"sort"
	"time"

	"github.com/stridehq/stride/internal/models"
	"gorm.io/gorm"
)

// Snapshot is a read-only view of a plan with all weeks, days and activities.
type Snapshot struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	RaceDate  time.Time      `json:"raceDate"`
	WeekCount int            `json:"weekCount"`
	Status    string         `json:"status"`
	Weeks     []WeekSnapshot `json:"weeks"`
}

// WeekSnapshot is one week within a snapshot.
type WeekSnapshot struct {
	ID        string        `json:"id"`
	Index     int           `json:"index"`
	StartDate *time.Time    `json:"startDate,omitempty"`
	EndDate   *time.Time    `json:"endDate,omitempty"`
	Days      []DaySnapshot `json:"days"`
}

// DaySnapshot is one day within a snapshot.
type DaySnapshot struct {
	ID         string             `json:"id"`
	WeekID     string             `json:"weekId"`
	DayOfWeek  int                `json:"dayOfWeek"`
	Notes      string             `json:"notes,omitempty"`
	Activities []ActivitySnapshot `json:"activities"`
}

// ActivitySnapshot is one activity within a snapshot.
type ActivitySnapshot struct {
	ID             string   `json:"id"`
	Type           string   `json:"type"`
	Subtype        string   `json:"subtype,omitempty"`
	Title          string   `json:"title"`
	DurationMin    *float64 `json:"durationMin,omitempty"`
	DistanceKm     *float64 `json:"distanceKm,omitempty"`
	Pace           string   `json:"pace,omitempty"`
	Effort         string   `json:"effort,omitempty"`
	Priority       string   `json:"priority"`
	MustDo         bool     `json:"mustDo"`
	Completed      bool     `json:"completed"`
	SessionGroupID *string  `json:"sessionGroupId,omitempty"`
	SessionOrder   *int     `json:"sessionOrder,omitempty"`
}

// Load reads a plan and its full week/day/activity tree from storage.
func Load(gdb *gorm.DB, planID string) (*Snapshot, error) {
	var p models.Plan
	err := gdb.
		Preload("Weeks", func(tx *gorm.DB) *gorm.DB { return tx.Order("idx") }).
		Preload("Weeks.Days", func(tx *gorm.DB) *gorm.DB { return tx.Order("day_of_week") }).
		Preload("Weeks.Days.Activities", func(tx *gorm.DB) *gorm.DB { return tx.Order("created_at") }).
		First(&p, "id = ?", planID).Error
	if err != nil {
		return nil, fmt.Errorf("plan: load %s: %w", planID, err)
	}
	return fromModel(&p), nil
}

func fromModel(p *models.Plan) *Snapshot {
	s := &Snapshot{
		ID:        p.ID,
		Name:      p.Name,
		RaceDate:  p.RaceDate,
		WeekCount: p.WeekCount,
		Status:    p.Status,
	}
	for _, w := range p.Weeks {
		ws := WeekSnapshot{
			ID:        w.ID,
			Index:     w.Index,
			StartDate: copyTimePtr(w.StartDate),
			EndDate:   copyTimePtr(w.EndDate),
		}
		for _, d := range w.Days {
			ds := DaySnapshot{
				ID:        d.ID,
				WeekID:    d.WeekID,
				DayOfWeek: d.DayOfWeek,
				Notes:     d.Notes,
			}
			for _, a := range d.Activities {
				ds.Activities = append(ds.Activities, activityFromModel(&a))
			}
			ws.Days = append(ws.Days, ds)
		}
		s.Weeks = append(s.Weeks, ws)
	}
	sort.Slice(s.Weeks, func(i, j int) bool { return s.Weeks[i].Index < s.Weeks[j].Index })
	return s
}

func activityFromModel(a *models.Activity) ActivitySnapshot {
	return ActivitySnapshot{
		ID:             a.ID,
		Type:           a.Type,
		Subtype:        a.Subtype,
		Title:          a.Title,
		DurationMin:    copyFloatPtr(a.DurationMin),
		DistanceKm:     copyFloatPtr(a.DistanceKm),
		Pace:           a.Pace,
		Effort:         a.Effort,
		Priority:       a.Priority,
		MustDo:         a.MustDo,
		Completed:      a.Completed,
		SessionGroupID: copyStringPtr(a.SessionGroupID),
		SessionOrder:   copyIntPtr(a.SessionOrder),
	}
}

// Clone returns a deep copy of the snapshot. Simulation works on clones so
// the original is never mutated.
func (s *Snapshot) Clone() *Snapshot {
	out := &Snapshot{
		ID:        s.ID,
		Name:      s.Name,
		RaceDate:  s.RaceDate,
		WeekCount: s.WeekCount,
		Status:    s.Status,
	}
	out.Weeks = make([]WeekSnapshot, len(s.Weeks))
	for i, w := range s.Weeks {
		cw := WeekSnapshot{
			ID:        w.ID,
			Index:     w.Index,
			StartDate: copyTimePtr(w.StartDate),
			EndDate:   copyTimePtr(w.EndDate),
		}
		cw.Days = make([]DaySnapshot, len(w.Days))
		for j, d := range w.Days {
			cd := DaySnapshot{
				ID:        d.ID,
				WeekID:    d.WeekID,
				DayOfWeek: d.DayOfWeek,
				Notes:     d.Notes,
			}
			cd.Activities = make([]ActivitySnapshot, len(d.Activities))
			for k, a := range d.Activities {
				ca := a
				ca.DurationMin = copyFloatPtr(a.DurationMin)
				ca.DistanceKm = copyFloatPtr(a.DistanceKm)
				ca.SessionGroupID = copyStringPtr(a.SessionGroupID)
				ca.SessionOrder = copyIntPtr(a.SessionOrder)
				cd.Activities[k] = ca
			}
			cw.Days[j] = cd
		}
		out.Weeks[i] = cw
	}
	return out
}

// FindDay returns the day with the given id, or nil.
func (s *Snapshot) FindDay(dayID string) *DaySnapshot {
	for i := range s.Weeks {
		for j := range s.Weeks[i].Days {
			if s.Weeks[i].Days[j].ID == dayID {
				return &s.Weeks[i].Days[j]
			}
		}
	}
	return nil
}

// FindActivity returns the activity with the given id and its owning day,
// or nil, nil.
func (s *Snapshot) FindActivity(activityID string) (*DaySnapshot, *ActivitySnapshot) {
	for i := range s.Weeks {
		for j := range s.Weeks[i].Days {
			d := &s.Weeks[i].Days[j]
			for k := range d.Activities {
				if d.Activities[k].ID == activityID {
					return d, &d.Activities[k]
				}
			}
		}
	}
	return nil, nil
}

// WeekOf returns the week containing the given day id, or nil.
func (s *Snapshot) WeekOf(dayID string) *WeekSnapshot {
	for i := range s.Weeks {
		for j := range s.Weeks[i].Days {
			if s.Weeks[i].Days[j].ID == dayID {
				return &s.Weeks[i]
			}
		}
	}
	return nil
}

// WeekStart returns the start date for a week, deriving it from the race
// date when no explicit start date is stored. Derived weeks are
// Monday-aligned and counted so the final week contains the race date.
func (s *Snapshot) WeekStart(w *WeekSnapshot) time.Time {
	if w.StartDate != nil {
		return *w.StartDate
	}
	raceMonday := MondayOf(s.RaceDate)
	return raceMonday.AddDate(0, 0, -7*(s.WeekCount-w.Index))
}

// MondayOf returns the Monday of the week containing t, at midnight UTC.
func MondayOf(t time.Time) time.Time {
	t = time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	dow := int(t.Weekday())
	if dow == 0 {
		dow = 7
	}
	return t.AddDate(0, 0, -(dow - 1))
}

func copyTimePtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}

func copyFloatPtr(f *float64) *float64 {
	if f == nil {
		return nil
	}
	c := *f
	return &c
}

func copyStringPtr(s *string) *string {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}

func copyIntPtr(i *int) *int {
	if i == nil {
		return nil
	}
	c := *i
	return &c
}
