package media

import (
	"strconv"

	"github.com/benam/api/internal/model"
)

// CanonicalFormat returns the layout every concatenated track must share.
func CanonicalFormat(sampleRate, channels int, bitrate string) model.AudioFormat {
	if sampleRate <= 0 {
		sampleRate = 44100
	}
	if channels <= 0 {
		channels = 2
	}
	if bitrate == "" {
		bitrate = "192k"
	}
	return model.AudioFormat{
		SampleRate: sampleRate,
		Channels:   channels,
		Bitrate:    bitrate,
		Codec:      "libmp3lame",
		Container:  "mp3",
	}
}

// encodeArgs are the ffmpeg output options that render f.
func encodeArgs(f model.AudioFormat) []string {
	return []string{
		"-ar", strconv.Itoa(f.SampleRate),
		"-ac", strconv.Itoa(f.Channels),
		"-c:a", f.Codec,
		"-b:a", f.Bitrate,
		"-f", f.Container,
	}
}

func channelLayout(channels int) string {
	switch channels {
	case 1:
		return "mono"
	case 2:
		return "stereo"
	default:
		return strconv.Itoa(channels) + "c"
	}
}

func sameFormat(a *model.AudioFormat, b model.AudioFormat) bool {
	return a != nil && *a == b
}
