package commands

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/thereayou/voxnote/cmd/server"
	"github.com/thereayou/voxnote/internal/database"
	ws "github.com/thereayou/voxnote/internal/websocket"
	"go.uber.org/zap"
)

// deleteMessageCmd удаление сообщения модератором. Участники комнаты получают
// refresh_notifications, чтобы бейджи пересчитались.
func deleteMessageCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete-message <message-id>",
		Short: "Delete a voice message and its inbox entries",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid message id: %w", err)
			}

			db, err := database.Connect(cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer db.Close()

			members, err := db.DeleteMessage(cmd.Context(), id)
			if err != nil {
				return err
			}

			rdb, err := server.ConnectRedis(cmd.Context(), cfg.RedisURL)
			if err != nil {
				return err
			}
			defer rdb.Close()

			broker, err := ws.NewRedisBroker(cmd.Context(), rdb, log)
			if err != nil {
				return err
			}
			hub := ws.NewHub(broker, log)
			defer hub.Stop()

			for _, m := range members {
				if err := hub.Publish(cmd.Context(), ws.UserGroup(m.Username), ws.RefreshNotifications{}); err != nil {
					return err
				}
			}

			log.Info("message deleted", zap.String("message_id", id.String()), zap.Int("members_notified", len(members)))
			return nil
		},
	}
}
