package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"parlor/internal/domain"
)

// send <room> <message>: encrypt under the room's newest session key and
// submit.
func sendCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "send <room> <message>",
		Short: "Encrypt and send a message to a room",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := chatService()
			if err != nil {
				return err
			}
			stamped, err := svc.Send(cmd.Context(), domain.RoomID(args[0]), []byte(args[1]))
			if err != nil {
				return err
			}
			fmt.Printf("sent (epoch %d, seq %d)\n", stamped.Epoch, stamped.Sequence)
			return nil
		},
	}
}
