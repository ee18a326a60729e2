package main

import (
	"fmt"
	"io"
	"sort"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/benam/api/internal/model"
	"github.com/benam/api/internal/store"
)

func newListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Show every song job in the store",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			redisClient := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
			defer redisClient.Close()

			jobs, err := store.NewRedisStore(redisClient, store.DefaultTTL).List(cmd.Context())
			if err != nil {
				return fmt.Errorf("list jobs: %w", err)
			}
			renderJobs(cmd.OutOrStdout(), jobs)
			return nil
		},
	}
}

func renderJobs(w io.Writer, jobs []*model.Job) {
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].DateKey < jobs[j].DateKey })

	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"Date", "Status", "Progress", "Step", "Title", "Job"})
	for _, j := range jobs {
		tw.AppendRow(table.Row{j.DateKey, j.Status, fmt.Sprintf("%d%%", j.Progress), j.CurrentStep, j.SongTitle, j.JobID})
	}
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 3, Align: text.AlignRight, AlignHeader: text.AlignLeft},
	})
	tw.Render()
}
