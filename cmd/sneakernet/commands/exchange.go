package commands

import (
	"fmt"
	"io"
	"strings"

	"sneakernet/internal/model"
	"sneakernet/internal/oob"
	"sneakernet/internal/protocol/exchange"

	"github.com/spf13/cobra"
)

func exchangeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "exchange",
		Short: "Create and check signed pairing payloads",
	}
	cmd.AddCommand(exchangeInitialCmd(), exchangeRespondCmd(), exchangeVerifyCmd(), exchangeCompleteCmd())
	return cmd
}

func exchangeInitialCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "initial",
		Short: "Print an initial exchange payload",
		RunE: func(cmd *cobra.Command, args []string) error {
			msg, err := rt.Service.CreateInitial(cmd.Context())
			if err != nil {
				return err
			}
			return printPayload(cmd.OutOrStdout(), msg)
		},
	}
}

func exchangeRespondCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "respond <their-pubkey>",
		Short: "Print a response payload addressed to their-pubkey",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			msg, err := rt.Service.CreateResponse(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printPayload(cmd.OutOrStdout(), msg)
		},
	}
}

// exchange verify [payload]: payload from the argument, --image, or stdin.
func exchangeVerifyCmd() *cobra.Command {
	var (
		image      string
		expectOurs bool
	)
	cmd := &cobra.Command{
		Use:   "verify [payload]",
		Short: "Verify a scanned payload and print the sender",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			payload, err := readPayload(cmd.InOrStdin(), args, image)
			if err != nil {
				return err
			}
			msg, err := rt.Service.VerifyPayload(cmd.Context(), payload, expectOurs)
			if err != nil {
				return err
			}
			printVerified(cmd.OutOrStdout(), msg)
			return nil
		},
	}
	cmd.Flags().StringVar(&image, "image", "", "read the payload from a QR code image (PNG or JPEG)")
	cmd.Flags().BoolVar(&expectOurs, "expect-ours", false, "require a response addressed to our public key")
	return cmd
}

func exchangeCompleteCmd() *cobra.Command {
	var nickname string
	cmd := &cobra.Command{
		Use:   "complete <their-pubkey>",
		Short: "Save a verified peer as a contact",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var nick *string
			if cmd.Flags().Changed("nickname") {
				nick = &nickname
			}
			contact, err := rt.Service.CompleteExchange(cmd.Context(), args[0], nick)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Contact %s saved.\nYour endpoint ID for this contact: %s\n", contact.ID, contact.EndpointID)
			return nil
		},
	}
	cmd.Flags().StringVar(&nickname, "nickname", "", "name to show for the contact")
	return cmd
}

func printPayload(w io.Writer, msg *model.ExchangeMessage) error {
	data, err := exchange.Marshal(msg)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

func printVerified(w io.Writer, msg *model.ExchangeMessage) {
	fmt.Fprintf(w, "Verified %s from %s\n", msg.Type, msg.Pubkey)
	if msg.TheirPubkey != nil {
		fmt.Fprintf(w, "Addressed to %s\n", *msg.TheirPubkey)
	}
}

func readPayload(stdin io.Reader, args []string, image string) ([]byte, error) {
	switch {
	case image != "":
		return oob.ScanQRFile(image)
	case len(args) == 1 && args[0] != "-":
		return []byte(args[0]), nil
	}
	data, err := io.ReadAll(stdin)
	if err != nil {
		return nil, err
	}
	if s := strings.TrimSpace(string(data)); s != "" {
		return []byte(s), nil
	}
	return nil, fmt.Errorf("no payload given")
}
