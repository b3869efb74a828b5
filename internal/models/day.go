package models

import (
	"fmt"
	"time"
)

// DayLayout is the calendar day key format. All day keys are UTC.
const DayLayout = "2006-01-02"

// DayOf returns the UTC calendar day key of t.
func DayOf(t time.Time) string {
	return t.UTC().Format(DayLayout)
}

// PreviousDay returns the day key before day.
func PreviousDay(day string) (string, error) {
	t, err := ParseDay(day)
	if err != nil {
		return "", err
	}
	return t.AddDate(0, 0, -1).Format(DayLayout), nil
}

// ParseDay validates a day key and returns midnight UTC of that day.
func ParseDay(day string) (time.Time, error) {
	t, err := time.ParseInLocation(DayLayout, day, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid day %q, expected YYYY-MM-DD: %w", day, err)
	}
	return t, nil
}
