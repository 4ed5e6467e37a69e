// Package analytics keeps the capped log of query events and derives the
// dashboard statistics from it.
package analytics

import (
	"sort"
	"strings"
	"time"

	"github.com/getchdocs/getchdocs-api/internal/model"
)

const (
	// TopQueriesLimit is how many ranked queries the dashboard shows.
	TopQueriesLimit = 10
	// RecentActivityLimit is how many latest events the dashboard shows.
	RecentActivityLimit = 20
	// DayWindow is the number of calendar days in the activity series.
	DayWindow = 7

	dateLayout = "2006-01-02"
)

// QueryCount is one ranked, normalized query.
type QueryCount struct {
	Query string `json:"query"`
	Count int    `json:"count"`
}

// DayCount is the number of events on one calendar date.
type DayCount struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

// DashboardStats is derived from the event log on every request.
type DashboardStats struct {
	TotalQueries      int                `json:"total_queries"`
	AvgResponseTimeMs float64            `json:"avg_response_time_ms"`
	TopQueries        []QueryCount       `json:"top_queries"`
	QueriesByDay      []DayCount         `json:"queries_by_day"`
	RecentActivity    []model.QueryEvent `json:"recent_activity"`
}

// NormalizeQuery is the grouping key for ranking: lowercased, surrounding
// whitespace removed.
func NormalizeQuery(q string) string {
	return strings.ToLower(strings.TrimSpace(q))
}

// ComputeStats derives dashboard statistics from events (oldest first).
// now and loc decide which calendar days make up the activity series; a nil
// loc means UTC.
func ComputeStats(events []model.QueryEvent, now time.Time, loc *time.Location) DashboardStats {
	if loc == nil {
		loc = time.UTC
	}

	stats := DashboardStats{
		TotalQueries: len(events),
		TopQueries:   topQueries(events, TopQueriesLimit),
		QueriesByDay: queriesByDay(events, now, loc, DayWindow),
	}

	if len(events) > 0 {
		var sum int64
		for _, e := range events {
			sum += e.ResponseTimeMs
		}
		stats.AvgResponseTimeMs = float64(sum) / float64(len(events))
	}

	stats.RecentActivity = recentActivity(events, RecentActivityLimit)
	return stats
}

// topQueries ranks normalized queries by count, descending. Ties keep the
// order in which each query was first seen.
func topQueries(events []model.QueryEvent, n int) []QueryCount {
	index := make(map[string]int)
	ranked := make([]QueryCount, 0)
	for _, e := range events {
		key := NormalizeQuery(e.Query)
		if i, ok := index[key]; ok {
			ranked[i].Count++
			continue
		}
		index[key] = len(ranked)
		ranked = append(ranked, QueryCount{Query: key, Count: 1})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Count > ranked[j].Count
	})
	if len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}

// queriesByDay returns exactly days entries, oldest first, ending on the
// calendar date of now in loc. Time of day is ignored.
func queriesByDay(events []model.QueryEvent, now time.Time, loc *time.Location, days int) []DayCount {
	today := now.In(loc)
	y, m, d := today.Date()

	series := make([]DayCount, days)
	slot := make(map[string]int, days)
	for i := 0; i < days; i++ {
		// Noon keeps AddDate-style arithmetic clear of DST edges.
		date := time.Date(y, m, d-(days-1-i), 12, 0, 0, 0, loc).Format(dateLayout)
		series[i] = DayCount{Date: date}
		slot[date] = i
	}

	for _, e := range events {
		if i, ok := slot[e.Timestamp.In(loc).Format(dateLayout)]; ok {
			series[i].Count++
		}
	}
	return series
}

// recentActivity returns the last n events, newest first.
func recentActivity(events []model.QueryEvent, n int) []model.QueryEvent {
	start := len(events) - n
	if start < 0 {
		start = 0
	}
	out := make([]model.QueryEvent, 0, len(events)-start)
	for i := len(events) - 1; i >= start; i-- {
		out = append(out, events[i])
	}
	return out
}

// BarScale is the denominator for drawing bars: the largest count, never
// below 1.
func BarScale(counts ...int) int {
	scale := 1
	for _, c := range counts {
		if c > scale {
			scale = c
		}
	}
	return scale
}

// MaxQueryCount is BarScale over the ranked queries.
func (s DashboardStats) MaxQueryCount() int {
	counts := make([]int, len(s.TopQueries))
	for i, q := range s.TopQueries {
		counts[i] = q.Count
	}
	return BarScale(counts...)
}

// MaxDayCount is BarScale over the daily series.
func (s DashboardStats) MaxDayCount() int {
	counts := make([]int, len(s.QueriesByDay))
	for i, d := range s.QueriesByDay {
		counts[i] = d.Count
	}
	return BarScale(counts...)
}
