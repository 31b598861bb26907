package commands

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

func contactsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "contacts",
		Short: "List and edit contacts",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List contacts, most recent first",
		RunE: func(cmd *cobra.Command, args []string) error {
			contacts, err := rt.Service.Contacts(cmd.Context())
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNICKNAME\tPUBKEY\tEXCHANGED")
			for _, c := range contacts {
				nick := "-"
				if c.Nickname != nil {
					nick = *c.Nickname
				}
				exchanged := time.Unix(int64(c.ExchangedAt), 0).Format(time.DateTime)
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", c.ID, nick, c.NostrPubkey, exchanged)
			}
			return tw.Flush()
		},
	}

	del := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a contact",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return rt.Service.DeleteContact(cmd.Context(), args[0])
		},
	}

	rename := &cobra.Command{
		Use:   "rename <id> [nickname]",
		Short: "Set or clear a contact's nickname",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var nick *string
			if len(args) == 2 {
				nick = &args[1]
			}
			_, err := rt.Service.RenameContact(cmd.Context(), args[0], nick)
			return err
		},
	}

	cmd.AddCommand(list, del, rename)
	return cmd
}
