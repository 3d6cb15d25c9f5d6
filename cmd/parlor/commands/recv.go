package commands

import (
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"parlor/internal/domain"
	"parlor/internal/services/chat"
)

// recv <room>: stream the room's live traffic, decrypting as it arrives,
// until interrupted.
func recvCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "recv <room>",
		Short: "Stream and decrypt live room messages",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := chatService()
			if err != nil {
				return err
			}
			room := domain.RoomID(args[0])

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			// Pick up any keys minted while we were offline.
			if err := svc.DrainKeyEvents(ctx); err != nil {
				return err
			}

			notifications, err := relayHTTP.Subscribe(ctx, domain.Username(username))
			if err != nil {
				return err
			}
			fmt.Printf("listening on %s (ctrl-c to stop)\n", room)

			for n := range notifications {
				switch {
				case n.Type == "key_events":
					if err := svc.DrainKeyEvents(ctx); err != nil {
						fmt.Printf("! key sync: %v\n", err)
					}
				case n.Type == "message" && n.Message != nil:
					if n.Message.Room == room {
						printMessage(svc, *n.Message)
					}
				}
			}
			return nil
		},
	}
}

func printMessage(svc *chat.Service, m domain.Message) {
	dm, err := svc.Decrypt(m)
	switch {
	case errors.Is(err, domain.ErrKeyUnavailable):
		fmt.Printf("[%s] <no key for epoch %d>\n", m.Sender, m.Epoch)
	case err != nil:
		fmt.Printf("[%s] <undecryptable: %v>\n", m.Sender, err)
	default:
		ts := time.Unix(dm.Timestamp, 0).Format("15:04:05")
		fmt.Printf("%s [%s] %s\n", ts, dm.Sender, dm.Plaintext)
	}
}
