package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func roomsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rooms",
		Short: "List rooms on the relay",
		RunE: func(cmd *cobra.Command, args []string) error {
			if relayHTTP == nil {
				return fmt.Errorf("no relay configured. use --relay")
			}
			rooms, err := relayHTTP.ListRooms(cmd.Context())
			if err != nil {
				return err
			}
			if len(rooms) == 0 {
				fmt.Println("no rooms")
				return nil
			}
			for _, r := range rooms {
				fmt.Printf("%-20s  %-20s  epoch %-4d  %d member(s)\n", r.ID, r.Name, r.Epoch, r.Members)
			}
			return nil
		},
	}
}
