package models

import "time"

// Plan statuses.
const (
	PlanDraft    = "DRAFT"
	PlanActive   = "ACTIVE"
	PlanArchived = "ARCHIVED"
)

// Plan is a multi-week training schedule anchored to a race date.
type Plan struct {
	ID        string     `gorm:"primaryKey;size:36"`
	Name      string     `gorm:"not null"`
	RaceDate  time.Time  `gorm:"index"`
	WeekCount int        `gorm:"default:0"`
	Status    string     `gorm:"size:16;default:DRAFT;index"`
	CreatedAt time.Time
	UpdatedAt time.Time

	Weeks []Week `gorm:"foreignKey:PlanID"`
}

// Week is one training week within a plan. Index is 1-based and unique
// within a plan.
type Week struct {
	ID        string     `gorm:"primaryKey;size:36"`
	PlanID    string     `gorm:"size:36;index;not null"`
	Index     int        `gorm:"column:idx;not null"`
	StartDate *time.Time
	EndDate   *time.Time
	Focus     string     `gorm:"type:text"`
	CreatedAt time.Time
	UpdatedAt time.Time

	Days []Day `gorm:"foreignKey:WeekID"`
}

// Day is one calendar day within a week. Notes may carry a manual status
// marker (OPEN/DONE/MISSED) alongside free text.
type Day struct {
	ID        string    `gorm:"primaryKey;size:36"`
	WeekID    string    `gorm:"size:36;index;not null"`
	DayOfWeek int       `gorm:"not null"` // 1=Mon … 7=Sun
	Notes     string    `gorm:"type:text"`
	CreatedAt time.Time
	UpdatedAt time.Time

	Activities []Activity `gorm:"foreignKey:DayID"`
}

// Activity types.
const (
	ActivityRun        = "RUN"
	ActivityStrength   = "STRENGTH"
	ActivityCrossTrain = "CROSS_TRAIN"
	ActivityRest       = "REST"
	ActivityMobility   = "MOBILITY"
	ActivityYoga       = "YOGA"
	ActivityHike       = "HIKE"
	ActivityOther      = "OTHER"
)

// Activity priorities.
const (
	PriorityKey      = "KEY"
	PriorityMedium   = "MEDIUM"
	PriorityOptional = "OPTIONAL"
)

// Activity is a single planned session (or part of one) on a day.
type Activity struct {
	ID             string   `gorm:"primaryKey;size:36"`
	DayID          string   `gorm:"size:36;index;not null"`
	Type           string   `gorm:"size:16;not null"`
	Subtype        string   `gorm:"size:32"`
	Title          string   `gorm:"not null"`
	DurationMin    *float64
	DistanceKm     *float64
	Pace           string   `gorm:"size:64"`
	Effort         string   `gorm:"size:64"`
	Priority       string   `gorm:"size:16;default:MEDIUM"`
	MustDo         bool     `gorm:"default:false"`
	Completed      bool     `gorm:"default:false;index"`
	SessionGroupID *string  `gorm:"size:36"`
	SessionOrder   *int
	Notes          string   `gorm:"type:text"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
