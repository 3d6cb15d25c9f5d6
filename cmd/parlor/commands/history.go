package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"parlor/internal/domain"
)

// history <room>: fetch and decrypt the room's persisted log. The relay
// clamps the range to this user's join epoch.
func historyCmd() *cobra.Command {
	var sinceEpoch uint64
	cmd := &cobra.Command{
		Use:   "history <room>",
		Short: "Fetch and decrypt a room's message history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := chatService()
			if err != nil {
				return err
			}
			msgs, err := svc.History(cmd.Context(), domain.RoomID(args[0]), domain.Epoch(sinceEpoch))
			if err != nil {
				return err
			}
			for _, m := range msgs {
				ts := time.Unix(m.Timestamp, 0).Format("2006-01-02 15:04:05")
				fmt.Printf("%s  %4d  [%s] %s\n", ts, m.Sequence, m.Sender, m.Plaintext)
			}
			return nil
		},
	}
	cmd.Flags().Uint64Var(&sinceEpoch, "since-epoch", 0, "oldest epoch to fetch")
	return cmd
}
