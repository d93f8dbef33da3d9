package cli

import (
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"quiz-rooms-service/internal/app"
	"quiz-rooms-service/internal/config"
	pgstore "quiz-rooms-service/internal/infra/postgres"
	redisstore "quiz-rooms-service/internal/infra/redis"
)

// NewArchiveCmd runs one archival sweep and exits. The same sweep runs
// periodically inside the server; this command exists for scheduled jobs and
// manual housekeeping.
func NewArchiveCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "archive",
		Short: "Archive finished rooms past the retention threshold",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			if cfg.Redis.Addr == "" {
				return fmt.Errorf("redis addr not configured")
			}
			if cfg.Postgres.URL == "" {
				return fmt.Errorf("postgres url not configured")
			}

			redisClient := redis.NewClient(&redis.Options{
				Addr:     cfg.Redis.Addr,
				Password: cfg.Redis.Password,
				DB:       cfg.Redis.DB,
			})
			defer redisClient.Close()

			bunDB := openBunDB(cfg.Postgres.URL)
			defer bunDB.Close()

			states := redisstore.NewGameStateStore(redisClient)
			rooms := pgstore.NewRoomRepository(bunDB)
			sink := pgstore.NewArchiveSink(bunDB)

			retention := config.TTLDuration(cfg.Archive.Retention, app.DefaultRetention)
			archiver := app.NewArchiver(states, rooms, sink, retention)

			archived, err := archiver.ArchiveCompletedRooms(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("archived %d rooms\n", archived)
			return nil
		},
	}
}
