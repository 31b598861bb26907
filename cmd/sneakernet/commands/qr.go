package commands

import (
	"sneakernet/internal/model"
	"sneakernet/internal/oob"
	"sneakernet/internal/protocol/exchange"

	"github.com/spf13/cobra"
)

func qrCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "qr",
		Short: "Exchange payloads as QR codes",
	}

	show := &cobra.Command{
		Use:   "show [their-pubkey]",
		Short: "Render an initial payload, or a response when their-pubkey is given",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				msg *model.ExchangeMessage
				err error
			)
			if len(args) == 1 {
				msg, err = rt.Service.CreateResponse(cmd.Context(), args[0])
			} else {
				msg, err = rt.Service.CreateInitial(cmd.Context())
			}
			if err != nil {
				return err
			}

			data, err := exchange.Marshal(msg)
			if err != nil {
				return err
			}
			oob.PrintQR(data)
			return nil
		},
	}

	var expectOurs bool
	scan := &cobra.Command{
		Use:   "scan <image>",
		Short: "Read and verify a payload from a QR code image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			payload, err := oob.ScanQRFile(args[0])
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
	scan.Flags().BoolVar(&expectOurs, "expect-ours", false, "require a response addressed to our public key")

	cmd.AddCommand(show, scan)
	return cmd
}
