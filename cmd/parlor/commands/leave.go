package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"parlor/internal/domain"
)

func leaveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "leave <room>",
		Short: "Leave a room and purge its keys from this device",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := chatService()
			if err != nil {
				return err
			}
			if err := svc.Leave(cmd.Context(), domain.RoomID(args[0])); err != nil {
				return err
			}
			fmt.Printf("left %s\n", args[0])
			return nil
		},
	}
}
