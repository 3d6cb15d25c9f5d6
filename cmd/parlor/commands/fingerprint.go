package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"parlor/internal/domain"
)

// fingerprint [peer]: with no argument prints the local fingerprint; with a
// peer username fetches their published key for out-of-band comparison.
func fingerprintCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fingerprint [peer]",
		Short: "Print your identity fingerprint, or a peer's",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				if relayHTTP == nil {
					return fmt.Errorf("no relay configured. use --relay")
				}
				fp, err := ids.PeerFingerprint(cmd.Context(), domain.Username(args[0]))
				if err != nil {
					return err
				}
				fmt.Printf("%s: %s\n", args[0], fp)
				return nil
			}
			if err := requirePassphrase(); err != nil {
				return err
			}
			fp, err := ids.Fingerprint(passphrase)
			if err != nil {
				return err
			}
			fmt.Println(fp)
			return nil
		},
	}
}
