// Package models defines the data structures for transcript segments and pages.
package models

import (
	"fmt"
	"math"
)

// Segment is one timestamped unit of transcript text.
type Segment struct {
	ID        int64   `json:"id"`
	Text      string  `json:"text"`
	StartTime float64 `json:"start_time"`
	EndTime   float64 `json:"end_time"`
	Duration  float64 `json:"duration"`
}

// Validate checks the timing invariant of a single segment.
func (s Segment) Validate() error {
	if s.StartTime > s.EndTime {
		return fmt.Errorf("segment %d: start_time %.3f after end_time %.3f", s.ID, s.StartTime, s.EndTime)
	}
	return nil
}

// Page is one response of the paged segment protocol.
type Page struct {
	Items   []Segment `json:"items"`
	Total   int       `json:"total"`
	Offset  int       `json:"offset"`
	Limit   int       `json:"limit"`
	HasMore bool      `json:"has_more"`
}

// Cursor returns the pagination cursor described by the page. The limit is
// never smaller than the number of items received, so Next always moves past
// them even when the server echoes a zero limit.
func (p Page) Cursor() Cursor {
	return Cursor{
		Offset:  p.Offset,
		Limit:   max(p.Limit, len(p.Items)),
		Total:   p.Total,
		HasMore: p.HasMore,
	}
}

// Cursor tracks the position of the most recently loaded page.
// HasMore is the only authority on whether further pages exist.
type Cursor struct {
	Offset  int
	Limit   int
	Total   int
	HasMore bool
}

// Next returns the offset of the page following this one.
func (c Cursor) Next() int {
	return c.Offset + c.Limit
}

// IsOrdered reports whether segments are ascending by start time.
func IsOrdered(segments []Segment) bool {
	for i := 1; i < len(segments); i++ {
		if segments[i].StartTime < segments[i-1].StartTime {
			return false
		}
	}
	return true
}

// FormatTimestamp renders seconds as M:SS, or H:MM:SS from one hour on.
func FormatTimestamp(seconds float64) string {
	if math.IsNaN(seconds) || seconds < 0 {
		seconds = 0
	}
	total := int(seconds)
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}
