// PurpleKit Analytics - Time Bucketing Service
// Pure calendar-bucketing rules shared by every time-series aggregator
// Copyright (c) 2024 PurpleKit. All rights reserved.

package service

import (
	"time"
)

// Granularity is the calendar unit a time series is bucketed by.
type Granularity string

const (
	GranularityDay   Granularity = "day"
	GranularityWeek  Granularity = "week"
	GranularityMonth Granularity = "month"
)

// Range-length thresholds for granularity selection, in calendar days.
const (
	maxDailyRangeDays  = 30
	maxWeeklyRangeDays = 180
)

// GranularityFor selects the bucket granularity for an inclusive date range.
// The choice depends on range length only: up to 30 days daily, up to 180
// days weekly, monthly beyond that.
func GranularityFor(start, end time.Time) Granularity {
	days := rangeDays(start, end)
	switch {
	case days <= maxDailyRangeDays:
		return GranularityDay
	case days <= maxWeeklyRangeDays:
		return GranularityWeek
	default:
		return GranularityMonth
	}
}

// BucketKey maps a timestamp to the start of its owning bucket in UTC.
// Weekly buckets start on Monday; monthly buckets on the first of the month.
func BucketKey(t time.Time, g Granularity) time.Time {
	t = t.UTC()
	switch g {
	case GranularityWeek:
		day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
		// time.Weekday numbers Sunday as 0; shift so Monday anchors the week.
		offset := (int(day.Weekday()) + 6) % 7
		return day.AddDate(0, 0, -offset)
	case GranularityMonth:
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	default:
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	}
}

// SeedBuckets generates one bucket key per calendar unit spanning the full
// inclusive range, in ascending order. Both endpoints' buckets are included,
// so a range covering N calendar days seeds N daily buckets.
func SeedBuckets(start, end time.Time, g Granularity) []time.Time {
	if end.Before(start) {
		return nil
	}

	first := BucketKey(start, g)
	last := BucketKey(end, g)

	var keys []time.Time
	for key := first; !key.After(last); key = nextBucket(key, g) {
		keys = append(keys, key)
	}
	return keys
}

// BucketEnd returns the exclusive upper bound of the bucket starting at key.
func BucketEnd(key time.Time, g Granularity) time.Time {
	return nextBucket(key, g)
}

// Label renders a bucket key the way dashboard clients expect: ISO date for
// daily and weekly buckets, year-month for monthly buckets.
func Label(key time.Time, g Granularity) string {
	if g == GranularityMonth {
		return key.Format("2006-01")
	}
	return key.Format("2006-01-02")
}

func nextBucket(key time.Time, g Granularity) time.Time {
	switch g {
	case GranularityWeek:
		return key.AddDate(0, 0, 7)
	case GranularityMonth:
		return key.AddDate(0, 1, 0)
	default:
		return key.AddDate(0, 0, 1)
	}
}

func rangeDays(start, end time.Time) int {
	s := BucketKey(start, GranularityDay)
	e := BucketKey(end, GranularityDay)
	return int(e.Sub(s).Hours()/24) + 1
}
