package models

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

const DateLayout = "2006-01-02"

type AvailabilitySchedule struct {
	gorm.Model
	HostID    uint           `gorm:"column:host_id;not null;index" json:"host_id"`
	Name      string         `gorm:"column:name;size:255;not null" json:"name"`
	TimeZone  string         `gorm:"column:timezone;size:64;not null" json:"timezone"`
	IsDefault bool           `gorm:"column:is_default;not null;default:false" json:"is_default"`
	Rules     []WeeklyRule   `gorm:"foreignKey:ScheduleID;constraint:OnDelete:CASCADE" json:"schedules"`
	Overrides []DateOverride `gorm:"foreignKey:ScheduleID;constraint:OnDelete:CASCADE" json:"overrides"`
}

func (AvailabilitySchedule) TableName() string {
	return "availability_schedules"
}

// WeeklyRule is a recurring window, wall-clock in the schedule's timezone. DayOfWeek 0 is Sunday.
type WeeklyRule struct {
	ID         uint   `gorm:"primaryKey" json:"id"`
	ScheduleID uint   `gorm:"column:schedule_id;not null;uniqueIndex:idx_weekly_rule_day" json:"-"`
	DayOfWeek  int    `gorm:"column:day_of_week;not null;uniqueIndex:idx_weekly_rule_day" json:"day_of_week"`
	StartTime  string `gorm:"column:start_time;size:5;not null" json:"start_time"`
	EndTime    string `gorm:"column:end_time;size:5;not null" json:"end_time"`
}

func (WeeklyRule) TableName() string {
	return "weekly_rules"
}

// DateOverride replaces the weekly rules for one calendar date.
type DateOverride struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	ScheduleID uint      `gorm:"column:schedule_id;not null;uniqueIndex:idx_date_override_date" json:"schedule_id"`
	Date       string    `gorm:"column:date;size:10;not null;uniqueIndex:idx_date_override_date" json:"date"`
	IsBlocked  bool      `gorm:"column:is_blocked;not null;default:false" json:"is_blocked"`
	StartTime  string    `gorm:"column:start_time;size:5" json:"start_time,omitempty"`
	EndTime    string    `gorm:"column:end_time;size:5" json:"end_time,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

func (DateOverride) TableName() string {
	return "date_overrides"
}

func (s AvailabilitySchedule) Location() (*time.Location, error) {
	return time.LoadLocation(s.TimeZone)
}

func (s AvailabilitySchedule) RuleFor(day time.Weekday) (WeeklyRule, bool) {
	for _, rule := range s.Rules {
		if rule.DayOfWeek == int(day) {
			return rule, true
		}
	}
	return WeeklyRule{}, false
}

func (s AvailabilitySchedule) OverrideFor(date string) (DateOverride, bool) {
	for _, override := range s.Overrides {
		if override.Date == date {
			return override, true
		}
	}
	return DateOverride{}, false
}

// ClockMinutes parses an "HH:MM" wall-clock value into minutes after midnight.
// "24:00" is accepted as the end of the day.
func ClockMinutes(value string) (int, error) {
	t, err := time.Parse("15:04", value)
	if err != nil {
		if value == "24:00" {
			return 24 * 60, nil
		}
		return 0, fmt.Errorf("invalid clock time %q", value)
	}
	return t.Hour()*60 + t.Minute(), nil
}
