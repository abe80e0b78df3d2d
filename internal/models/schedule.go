package models

import "time"

// WeekdayNames fixes the bucket order of a week schedule.
var WeekdayNames = [7]string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}

// NoDueDateBucket labels the sentinel bucket for undated assignments.
const NoDueDateBucket = "No Due Date"

// DayBucket groups the upcoming assignments due on one weekday,
// ascending by due instant.
type DayBucket struct {
	Day         string                `json:"day"`
	Assignments []ScheduledAssignment `json:"assignments"`
}

// WeekSchedule is the grouped result of one sync run. All seven weekday
// buckets are always present, in Monday..Sunday order; undated
// assignments keep their merge order in NoDueDate.
type WeekSchedule struct {
	Timezone    string              `json:"timezone"`
	GeneratedAt time.Time           `json:"generated_at"`
	Days        []DayBucket         `json:"days"`
	NoDueDate   []UndatedAssignment `json:"no_due_date"`
}

// NewWeekSchedule builds an empty schedule for the given zone.
func NewWeekSchedule(timezone string, generatedAt time.Time) *WeekSchedule {
	days := make([]DayBucket, len(WeekdayNames))
	for i, name := range WeekdayNames {
		days[i] = DayBucket{Day: name, Assignments: []ScheduledAssignment{}}
	}
	return &WeekSchedule{
		Timezone:    timezone,
		GeneratedAt: generatedAt,
		Days:        days,
		NoDueDate:   []UndatedAssignment{},
	}
}

// Add appends an assignment to its weekday bucket.
func (s *WeekSchedule) Add(day string, a ScheduledAssignment) {
	for i := range s.Days {
		if s.Days[i].Day == day {
			s.Days[i].Assignments = append(s.Days[i].Assignments, a)
			return
		}
	}
}

// Day returns the bucket for a weekday name, nil when unknown.
func (s *WeekSchedule) Day(name string) *DayBucket {
	for i := range s.Days {
		if s.Days[i].Day == name {
			return &s.Days[i]
		}
	}
	return nil
}
