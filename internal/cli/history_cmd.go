package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect and manage saved conversations",
	}

	cmd.AddCommand(newHistoryListCmd())
	cmd.AddCommand(newHistoryShowCmd())
	cmd.AddCommand(newHistoryDeleteCmd())

	return cmd
}

func newHistoryListCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List saved conversations, most recent first",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, closeStore, err := openHistory()
			if err != nil {
				return err
			}
			defer closeStore()

			printConversationList(cmd.OutOrStdout(), store.List(), "")
			return nil
		},
	}
}

func newHistoryShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <n|id>",
		Short: "Print a saved conversation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, closeStore, err := openHistory()
			if err != nil {
				return err
			}
			defer closeStore()

			id, err := resolveConversation(store.List(), args[0])
			if err != nil {
				return err
			}
			conv, _ := store.Get(id)

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s (%s)\n\n", conv.Title, conv.ID)
			printMessages(out, conv.Messages)
			return nil
		},
	}
}

func newHistoryDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "delete <n|id>",
		Aliases: []string{"rm"},
		Short:   "Delete a saved conversation",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, closeStore, err := openHistory()
			if err != nil {
				return err
			}
			defer closeStore()

			id, err := resolveConversation(store.List(), args[0])
			if err != nil {
				return err
			}
			store.Remove(id)
			if err := store.PersistErr(); err != nil {
				return fmt.Errorf("saving history: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", id)
			return nil
		},
	}
}
