package model

import (
	"fmt"
	"time"
)

// Job is the persisted record for one song submission, keyed by DateKey.
type Job struct {
	JobID           string      `json:"jobId"`
	DateKey         string      `json:"dateKey"`
	SourceRef       string      `json:"sourceRef"`
	VideoID         string      `json:"videoId,omitempty"`
	ClipWindow      *ClipWindow `json:"clipWindow,omitempty"`
	SongTitle       string      `json:"songTitle,omitempty"`
	DJName          string      `json:"djName,omitempty"`
	DJMessage       *DJMessage  `json:"djMessage,omitempty"`
	ReviewerContact string      `json:"reviewerContact,omitempty"`
	SubmittedBy     string      `json:"submittedBy,omitempty"`

	Status      JobStatus `json:"status"`
	Progress    int       `json:"progress"`
	CurrentStep string    `json:"currentStep,omitempty"`
	Error       *string   `json:"error,omitempty"`

	PrimaryArtifactRef   string   `json:"primaryArtifactRef,omitempty"`
	CombinedArtifactRef  string   `json:"combinedArtifactRef,omitempty"`
	ThumbnailArtifactRef string   `json:"thumbnailArtifactRef,omitempty"`
	DurationSeconds      *float64 `json:"durationSeconds,omitempty"`
	AsciiThumbnail       string   `json:"asciiThumbnail,omitempty"`

	CreatedAt   time.Time  `json:"createdAt"`
	StartedAt   *time.Time `json:"startedAt,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

// DJMessage describes where the DJ's spoken message comes from.
type DJMessage struct {
	Kind         DJMessageKind `json:"kind" validate:"required,oneof=synthesized recorded"`
	Text         string        `json:"text,omitempty" validate:"required_if=Kind synthesized,max=1000"`
	RecordingKey string        `json:"recordingKey,omitempty" validate:"required_if=Kind recorded"`
}

// ClipWindow is a time range into the source media, in seconds.
// A nil End means "up to maxDuration or the end of the source".
type ClipWindow struct {
	Start float64  `json:"start" validate:"min=0"`
	End   *float64 `json:"end,omitempty"`
}

// Invocation is the payload handed to one pipeline run.
type Invocation struct {
	JobID              string      `json:"jobId" validate:"required"`
	DateKey            string      `json:"dateKey" validate:"required,datetime=2006-01-02"`
	SourceRef          string      `json:"sourceRef" validate:"required,url"`
	ClipWindow         *ClipWindow `json:"clipWindow,omitempty" validate:"omitempty"`
	MaxDurationSeconds float64     `json:"maxDurationSeconds" validate:"gt=0"`
}

// ArtifactKey derives the object key {category}/{dateKey}/{jobId}.{ext}.
func ArtifactKey(category ArtifactCategory, dateKey, jobID, ext string) string {
	return fmt.Sprintf("%s/%s/%s.%s", category, dateKey, jobID, ext)
}
