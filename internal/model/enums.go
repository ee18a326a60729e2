package model

// Job status
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// IsTerminal reports whether no further transition is allowed from s.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// DJ message kinds
type DJMessageKind string

const (
	DJMessageSynthesized DJMessageKind = "synthesized"
	DJMessageRecorded    DJMessageKind = "recorded"
)

// Track roles
type TrackRole string

const (
	TrackRolePrimary      TrackRole = "primary"
	TrackRoleDJMessage    TrackRole = "djMessage"
	TrackRoleReviewPrompt TrackRole = "reviewPrompt"
	TrackRoleSilence      TrackRole = "silence"
)

// Artifact categories used in storage keys
type ArtifactCategory string

const (
	ArtifactSongs      ArtifactCategory = "songs"
	ArtifactCombined   ArtifactCategory = "combined"
	ArtifactThumbnails ArtifactCategory = "thumbnails"
	ArtifactDJMessages ArtifactCategory = "dj-messages"
)
