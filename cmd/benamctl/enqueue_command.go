package main

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/benam/api/internal/client"
	"github.com/benam/api/internal/service"
	"github.com/benam/api/internal/store"
)

const cliUser = "benamctl"

func newEnqueueCommand(ctx *commandContext) *cobra.Command {
	var flags songFlags

	cmd := &cobra.Command{
		Use:   "enqueue",
		Short: "Submit a song to the worker queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			req := flags.request()
			if err := validator.New().Var(req.DateKey, "datetime=2006-01-02"); err != nil {
				return fmt.Errorf("invalid --date %q: want YYYY-MM-DD", req.DateKey)
			}

			redisOpt := asynq.RedisClientOpt{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB}
			redisClient := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
			defer redisClient.Close()
			asynqClient := asynq.NewClient(redisOpt)
			defer asynqClient.Close()

			artifacts, err := client.NewArtifactStore(&cfg.Storage)
			if err != nil {
				return fmt.Errorf("artifact store: %w", err)
			}

			svc := service.NewSongService(
				store.NewRedisStore(redisClient, store.DefaultTTL),
				artifacts,
				asynqClient,
				nil,
				service.QueueOptions{Queue: cfg.Worker.Queue, MaxRetry: cfg.Worker.MaxRetry, Timeout: cfg.Worker.Timeout},
				cfg.Media.MaxDurationSeconds,
			)
			resp, err := svc.Submit(cmd.Context(), cliUser, req)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), resp)
		},
	}
	flags.register(cmd)
	return cmd
}
