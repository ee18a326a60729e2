package main

import (
	"github.com/spf13/cobra"

	"github.com/benam/api/internal/model"
)

// songFlags are the submission fields shared by process and enqueue.
type songFlags struct {
	dateKey  string
	url      string
	title    string
	start    float64
	end      float64
	djName   string
	djText   string
	reviewer string
}

func (f *songFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.dateKey, "date", "", "Date key (YYYY-MM-DD)")
	cmd.Flags().StringVar(&f.url, "url", "", "YouTube URL of the song")
	cmd.Flags().StringVar(&f.title, "title", "", "Song title")
	cmd.Flags().Float64Var(&f.start, "start", 0, "Clip start in seconds")
	cmd.Flags().Float64Var(&f.end, "end", 0, "Clip end in seconds (0 = up to the maximum duration)")
	cmd.Flags().StringVar(&f.djName, "dj-name", "", "Name of the DJ")
	cmd.Flags().StringVar(&f.djText, "dj-text", "", "DJ message to synthesize")
	cmd.Flags().StringVar(&f.reviewer, "reviewer", "", "Reviewer contact; adds the review prompt")
	_ = cmd.MarkFlagRequired("date")
	_ = cmd.MarkFlagRequired("url")
}

func (f *songFlags) clipWindow() *model.ClipWindow {
	if f.start == 0 && f.end == 0 {
		return nil
	}
	w := &model.ClipWindow{Start: f.start}
	if f.end > 0 {
		end := f.end
		w.End = &end
	}
	return w
}

func (f *songFlags) request() *model.SubmitSongRequest {
	req := &model.SubmitSongRequest{
		DateKey:         f.dateKey,
		YoutubeURL:      f.url,
		SongTitle:       f.title,
		DJName:          f.djName,
		ReviewerContact: f.reviewer,
	}
	if f.djText != "" {
		req.DJType = string(model.DJMessageSynthesized)
		req.DJMessage = f.djText
	}
	if w := f.clipWindow(); w != nil {
		req.StartTime = &w.Start
		req.EndTime = w.End
	}
	return req
}
