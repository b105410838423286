package plan

import "time"

// Summary is the compact plan projection returned alongside generate and
// apply responses.
type Summary struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	RaceDate       time.Time `json:"raceDate"`
	WeekCount      int       `json:"weekCount"`
	Status         string    `json:"status"`
	DayCount       int       `json:"dayCount"`
	LockedDayCount int       `json:"lockedDayCount"`
	ActivityCount  int       `json:"activityCount"`
	CompletedCount int       `json:"completedCount"`
}

// Summarize derives a Summary from a snapshot.
func Summarize(s *Snapshot) Summary {
	sum := Summary{
		ID:        s.ID,
		Name:      s.Name,
		RaceDate:  s.RaceDate,
		WeekCount: s.WeekCount,
		Status:    s.Status,
	}
	for i := range s.Weeks {
		for j := range s.Weeks[i].Days {
			d := &s.Weeks[i].Days[j]
			sum.DayCount++
			if DayLocked(d) {
				sum.LockedDayCount++
			}
			for _, a := range d.Activities {
				sum.ActivityCount++
				if a.Completed {
					sum.CompletedCount++
				}
			}
		}
	}
	return sum
}
