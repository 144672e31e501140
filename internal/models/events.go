package models

// Event types published by the navigator.
const (
	EventDeepLinkCompleted = "transcript.deeplink.completed"
	EventFetchFailed       = "transcript.fetch.failed"
)

// DeepLinkCompleted reports the end of one deep-link navigation cycle.
type DeepLinkCompleted struct {
	EventType         string   `json:"eventType"`
	SessionID         string   `json:"sessionId"`
	VideoID           string   `json:"videoId"`
	Language          string   `json:"language"`
	Identity          uint64   `json:"identity"`
	TargetSegmentID   int64    `json:"targetSegmentId,omitempty"`
	TargetTimestamp   *float64 `json:"targetTimestamp,omitempty"`
	ResolvedSegmentID int64    `json:"resolvedSegmentId,omitempty"`
	Strategy          string   `json:"strategy"`
	SequentialFetches int      `json:"sequentialFetches"`
	Seeked            bool     `json:"seeked"`
	Aborted           bool     `json:"aborted"`
	Timestamp         int64    `json:"timestamp"`
}

// FetchFailed reports a user-visible page request failure.
type FetchFailed struct {
	EventType string `json:"eventType"`
	SessionID string `json:"sessionId"`
	VideoID   string `json:"videoId"`
	Language  string `json:"language"`
	Operation string `json:"operation"`
	Offset    int    `json:"offset"`
	ErrorKind string `json:"errorKind"`
	Message   string `json:"message"`
	Timestamp int64  `json:"timestamp"`
}
