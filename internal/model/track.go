package model

// AudioFormat describes an encoded audio layout.
type AudioFormat struct {
	SampleRate int    `json:"sampleRate"`
	Channels   int    `json:"channels"`
	Bitrate    string `json:"bitrate"`
	Codec      string `json:"codec"`
	Container  string `json:"container"`
}

// AudioTrack is an in-flight audio file owned by a single pipeline run.
type AudioTrack struct {
	Role   TrackRole
	Path   string
	PeakDb *float64
	GainDb *float64
	// Format is nil until the track has been rendered in a known layout.
	Format *AudioFormat
}
