// Package media wraps the external audio engines (yt-dlp and ffmpeg) that
// fetch, normalize, pad and concatenate the tracks of a morning song.
//
// Every engine shells out through a Runner so tests can substitute canned
// command results for real subprocesses.
package media
