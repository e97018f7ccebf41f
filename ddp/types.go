package ddp

import "encoding/json"

// MediaID is the backend's opaque handle for a submitted file or link.
type MediaID string

// ResultID is the backend's opaque handle for a completed analysis.
// Distinct from MediaID; used once to fetch the final payload, then
// only persisted for reporting.
type ResultID string

type MediaKind string

const (
	MediaKindVideo MediaKind = "video"
	MediaKindImage MediaKind = "image"
)

type submitResponse struct {
	VideoID json.Number `json:"video_id"`
	Queued  bool        `json:"queued,omitempty"`
}

type linkRequest struct {
	URL string `json:"url"`
}

// VideoStatus is the backend's processing state for a media item.
type VideoStatus string

const (
	VideoStatusPending    VideoStatus = "pending"
	VideoStatusProcessing VideoStatus = "processing"
	VideoStatusCompleted  VideoStatus = "completed"
	VideoStatusFailed     VideoStatus = "failed"
)

/*
The shape changes depending on Status:
If Status == completed:

	ResultID is populated.

Otherwise:

	ResultID is empty.
*/
type StatusResponse struct {
	Status   VideoStatus `json:"status"`
	ResultID json.Number `json:"result_id,omitempty"`
}

type reportRequest struct {
	ResultID ResultID `json:"result_id"`
}

type ReportResponse struct {
	AlertID     json.Number `json:"alert_id"`
	ResultID    json.Number `json:"result_id"`
	PointsAdded int         `json:"points_added"`
	TotalPoints int         `json:"total_points"`
}

// FastAPI-style error body.
type errorDetail struct {
	Detail string `json:"detail"`
}
