package models

import "math"

// DeepLinkTarget identifies a segment to navigate to by id, timestamp, or both.
// A zero SegmentID means "no id"; HasTimestamp gates Timestamp.
type DeepLinkTarget struct {
	SegmentID    int64
	Timestamp    float64
	HasTimestamp bool
}

// NewDeepLinkTarget builds a target, dropping values outside their valid domain
// (ids must be positive, timestamps finite and non-negative).
func NewDeepLinkTarget(segmentID int64, timestamp *float64) DeepLinkTarget {
	var t DeepLinkTarget
	if segmentID > 0 {
		t.SegmentID = segmentID
	}
	if timestamp != nil && !math.IsNaN(*timestamp) && !math.IsInf(*timestamp, 0) && *timestamp >= 0 {
		t.Timestamp = *timestamp
		t.HasTimestamp = true
	}
	return t
}

// HasSegmentID reports whether the target names a segment id.
func (t DeepLinkTarget) HasSegmentID() bool {
	return t.SegmentID > 0
}

// IsEmpty reports whether the target carries nothing to resolve.
func (t DeepLinkTarget) IsEmpty() bool {
	return !t.HasSegmentID() && !t.HasTimestamp
}
