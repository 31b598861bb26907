package commands

import (
	"fmt"

	"sneakernet/internal/model"

	"github.com/spf13/cobra"
)

func keysCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Manage the long-term identity",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "generate",
			Short: "Generate a new identity, replacing any existing one",
			RunE: func(cmd *cobra.Command, args []string) error {
				info, err := rt.Service.GenerateKeys(cmd.Context())
				if err != nil {
					return err
				}
				printKeys(info)
				return nil
			},
		},
		&cobra.Command{
			Use:   "show",
			Short: "Print the public key",
			RunE: func(cmd *cobra.Command, args []string) error {
				info, err := rt.Service.PublicKey(cmd.Context())
				if err != nil {
					return err
				}
				printKeys(info)
				return nil
			},
		},
	)
	return cmd
}

func printKeys(info model.KeysInfo) {
	fmt.Printf("Public key: %s\nnpub:       %s\n", info.PublicKey, info.PublicKeyBech32)
}
