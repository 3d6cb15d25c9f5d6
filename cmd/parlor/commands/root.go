package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"parlor/internal/domain"
	"parlor/internal/keystore"
	"parlor/internal/relay"
	"parlor/internal/services/chat"
	"parlor/internal/services/identity"
)

var (
	home       string
	passphrase string
	relayURL   string
	username   string

	keys      *keystore.Store
	ids       *identity.Service
	relayHTTP *relay.HTTP
)

func Execute() error {
	root := &cobra.Command{
		Use:   "parlor",
		Short: "End-to-end encrypted room chat CLI",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if home == "" {
				dir, err := os.UserHomeDir()
				if err != nil {
					return err
				}
				home = filepath.Join(dir, ".parlor")
			}
			if err := os.MkdirAll(home, 0o700); err != nil {
				return err
			}

			keys = keystore.Open(home, passphrase)
			if relayURL != "" {
				relayHTTP = relay.NewHTTP(relayURL)
			}
			ids = identity.New(keys, relayHTTP)
			return nil
		},
	}

	root.PersistentFlags().StringVar(&home, "home", "", "config dir (default ~/.parlor)")
	root.PersistentFlags().StringVarP(&passphrase, "passphrase", "p", "", "passphrase to protect keys")
	root.PersistentFlags().StringVar(&relayURL, "relay", "", "relay base URL (e.g. http://127.0.0.1:8484)")
	root.PersistentFlags().StringVarP(&username, "username", "u", "", "your username (same as you registered with)")

	root.AddCommand(
		initCmd(), registerCmd(), fingerprintCmd(),
		roomsCmd(), joinCmd(), leaveCmd(),
		sendCmd(), recvCmd(), historyCmd(),
	)
	return root.Execute()
}

// requirePassphrase guards commands that open key material.
func requirePassphrase() error {
	if passphrase == "" {
		return fmt.Errorf("passphrase required (-p)")
	}
	return nil
}

// chatService loads the identity and builds the room workflow service.
// Everything past init/fingerprint needs it.
func chatService() (*chat.Service, error) {
	if err := requirePassphrase(); err != nil {
		return nil, err
	}
	if relayHTTP == nil {
		return nil, fmt.Errorf("no relay configured. use --relay")
	}
	if username == "" {
		return nil, fmt.Errorf("--username required")
	}
	id, err := keys.LoadIdentity(passphrase)
	if err != nil {
		return nil, err
	}
	return chat.New(relayHTTP, keys, id, domain.Username(username)), nil
}
