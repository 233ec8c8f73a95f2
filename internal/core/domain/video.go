package domain

import "time"

type VideoStatus string

const (
	VideoUploaded  VideoStatus = "uploaded"
	VideoCompleted VideoStatus = "completed"
	VideoFailed    VideoStatus = "failed"
)

type Video struct {
	ID          string      `json:"id"`
	UserID      string      `json:"user_id"`
	AnalysisID  string      `json:"analysis_id"`
	Filename    string      `json:"filename"`
	MimeType    string      `json:"mime_type"`
	StoragePath string      `json:"storage_path"`
	Status      VideoStatus `json:"status"`
	Error       string      `json:"error,omitempty"`
	UploadedAt  time.Time   `json:"uploaded_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// Terminal reports whether the video left the uploaded state.
func (v *Video) Terminal() bool {
	return v.Status == VideoCompleted || v.Status == VideoFailed
}
