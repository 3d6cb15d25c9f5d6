package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"parlor/internal/domain"
)

func registerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "register [username]",
		Short: "Publish your public key to the relay",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requirePassphrase(); err != nil {
				return err
			}
			if relayHTTP == nil {
				return fmt.Errorf("no relay configured. use --relay")
			}
			fp, err := ids.Register(cmd.Context(), passphrase, domain.Username(args[0]))
			if err != nil {
				return err
			}
			fmt.Printf("Registered %s with relay.\nFingerprint: %s\n", args[0], fp)
			return nil
		},
	}
}
