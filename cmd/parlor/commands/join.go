package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"parlor/internal/domain"
)

func joinCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "join <room>",
		Short: "Join a room and fetch its session key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := chatService()
			if err != nil {
				return err
			}
			ack, err := svc.Join(cmd.Context(), domain.RoomID(args[0]))
			if err != nil {
				return err
			}
			fmt.Printf("joined %s at epoch %d\n", ack.Room, ack.Epoch)
			if ack.Warning != "" {
				fmt.Printf("warning: %s\n", ack.Warning)
			}
			return nil
		},
	}
}
