package model

import "time"

// SubmitSongRequest represents the request body for a song submission
type SubmitSongRequest struct {
	DateKey         string   `json:"dateKey" validate:"required,datetime=2006-01-02"`
	YoutubeURL      string   `json:"youtubeURL" validate:"required,url"`
	SongTitle       string   `json:"songTitle" validate:"required,max=200"`
	StartTime       *float64 `json:"startTime" validate:"omitempty,min=0"`
	EndTime         *float64 `json:"endTime" validate:"omitempty,gt=0"`
	DJType          string   `json:"djType" validate:"required,oneof=synthesized recorded"`
	DJName          string   `json:"djName" validate:"required,max=100"`
	DJMessage       string   `json:"djMessage" validate:"required_if=DJType synthesized,max=1000"`
	DJRecordingData string   `json:"djRecordingData" validate:"required_if=DJType recorded"`
	ReviewerContact string   `json:"reviewerContact" validate:"omitempty,email"`
}

// SubmitSongResponse represents the response when a submission is accepted
type SubmitSongResponse struct {
	JobID   string    `json:"jobId"`
	DateKey string    `json:"dateKey"`
	Status  JobStatus `json:"status"`
}

// JobStatusResponse is what status pollers read
type JobStatusResponse struct {
	JobID       string     `json:"jobId"`
	DateKey     string     `json:"dateKey"`
	Status      JobStatus  `json:"status"`
	Progress    int        `json:"progress"`
	CurrentStep string     `json:"currentStep,omitempty"`
	Error       *string    `json:"error,omitempty"`
	Result      *JobResult `json:"result,omitempty"`
	PlaybackURL string     `json:"playbackUrl,omitempty"`
}

// JobResult holds artifact references of a completed job
type JobResult struct {
	PrimaryArtifactRef   string   `json:"primaryArtifactRef"`
	CombinedArtifactRef  string   `json:"combinedArtifactRef"`
	ThumbnailArtifactRef string   `json:"thumbnailArtifactRef,omitempty"`
	DurationSeconds      *float64 `json:"durationSeconds,omitempty"`
	AsciiThumbnail       string   `json:"asciiThumbnail,omitempty"`
}

// CancelSongResponse represents the response for a cancellation
type CancelSongResponse struct {
	Success bool      `json:"success"`
	DateKey string    `json:"dateKey"`
	At      time.Time `json:"at"`
}
