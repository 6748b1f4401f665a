package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"facegate/internal/util/timezone"
)

var identitiesCmd = &cobra.Command{
	Use:   "identities",
	Short: "Inspect and remove registered identities",
}

var identitiesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all registered identities with their capture counts",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := openCatalog(cfg)
		if err != nil {
			return err
		}
		defer app.Close()

		identities, err := app.repo.ListIdentities(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to list identities: %w", err)
		}
		if len(identities) == 0 {
			fmt.Println("No identities registered.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "LABEL\tCAPTURES\tCREATED")
		fmt.Fprintln(w, "-----\t--------\t-------")
		for _, id := range identities {
			fmt.Fprintf(w, "%s\t%d\t%s\n", id.Label, id.Captures, timezone.Format(id.CreatedAt, "2006-01-02 15:04"))
		}
		return w.Flush()
	},
}

var identitiesDeleteCmd = &cobra.Command{
	Use:   "delete <label>",
	Short: "Delete an identity, its captures and their files",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := openCatalog(cfg)
		if err != nil {
			return err
		}
		defer app.Close()

		removed, found, err := app.removalService().RemoveIdentity(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("identity %q not found", args[0])
		}
		fmt.Printf("Deleted %s (%d captures)\n", args[0], removed)
		return nil
	},
}

func init() {
	identitiesCmd.AddCommand(identitiesListCmd, identitiesDeleteCmd)
	rootCmd.AddCommand(identitiesCmd)
}
