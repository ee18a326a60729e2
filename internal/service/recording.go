package service

import (
	"encoding/base64"
	"errors"
	"strings"
)

// ErrInvalidRecording is returned for recording payloads that do not decode.
var ErrInvalidRecording = errors.New("invalid recording data")

// DecodeRecording parses a browser recording sent either as a data URL
// (data:audio/webm;codecs=opus;base64,...) or as bare base64.
func DecodeRecording(data string) (audio []byte, contentType string, err error) {
	contentType = "audio/webm"
	payload := strings.TrimSpace(data)

	if strings.HasPrefix(payload, "data:") {
		const marker = ";base64,"
		idx := strings.Index(payload, marker)
		if idx == -1 {
			return nil, "", ErrInvalidRecording
		}
		header := payload[len("data:"):idx]
		if semi := strings.Index(header, ";"); semi != -1 {
			header = header[:semi]
		}
		if header != "" {
			contentType = header
		}
		payload = payload[idx+len(marker):]
	}

	audio, err = base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, "", ErrInvalidRecording
	}
	if len(audio) == 0 {
		return nil, "", ErrInvalidRecording
	}
	return audio, contentType, nil
}
