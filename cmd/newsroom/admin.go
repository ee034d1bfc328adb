package main

import (
	"fmt"
	"strings"

	"github.com/alphabot-ai/newsroom/internal/model"
	"github.com/alphabot-ai/newsroom/internal/reaction"
	"github.com/alphabot-ai/newsroom/internal/store/sqlite"
	"github.com/spf13/cobra"
)

// The commands in this file work on the database directly, so they run on
// the server host.

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations and print the schema version",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := sqlite.Open(cfg.DBPath)
		if err != nil {
			return err
		}
		defer store.Close()
		version, dirty, err := store.SchemaVersion(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("%s at schema version %d", cfg.DBPath, version)
		if dirty {
			fmt.Print(" (dirty)")
		}
		fmt.Println()
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Manage the status catalog",
}

var statusName string

var statusAddCmd = &cobra.Command{
	Use:   "add <slug>",
	Short: "Add a status to the catalog",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		status := model.Status{Slug: strings.TrimSpace(args[0]), Name: strings.TrimSpace(statusName)}
		if status.Name == "" {
			status.Name = status.Slug
		}
		if err := reaction.ValidateStatus(status); err != nil {
			return err
		}
		store, err := sqlite.Open(cfg.DBPath)
		if err != nil {
			return err
		}
		defer store.Close()
		id, err := store.CreateStatus(cmd.Context(), &status)
		if err != nil {
			return fmt.Errorf("add %q: %w", status.Slug, err)
		}
		fmt.Printf("✓ Added status %q (%s, id %d)\n", status.Slug, status.Name, id)
		return nil
	},
}

var statusListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the status catalog",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := sqlite.Open(cfg.DBPath)
		if err != nil {
			return err
		}
		defer store.Close()
		statuses, err := store.ListStatuses(cmd.Context())
		if err != nil {
			return err
		}
		if len(statuses) == 0 {
			fmt.Println("No statuses.")
			return nil
		}
		for _, st := range statuses {
			fmt.Printf("%4d  %-20s %s\n", st.ID, st.Slug, st.Name)
		}
		return nil
	},
}

var statusRmCmd = &cobra.Command{
	Use:     "rm <slug>",
	Aliases: []string{"remove"},
	Short:   "Remove a status; reactions using it become cleared",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := sqlite.Open(cfg.DBPath)
		if err != nil {
			return err
		}
		defer store.Close()
		if err := store.DeleteStatus(cmd.Context(), args[0]); err != nil {
			return fmt.Errorf("remove %q: %w", args[0], err)
		}
		fmt.Printf("✓ Removed status %q\n", args[0])
		return nil
	},
}

var authorCmd = &cobra.Command{
	Use:   "author",
	Short: "Manage authors",
}

var demote bool

var authorPromoteCmd = &cobra.Command{
	Use:   "promote <username>",
	Short: "Grant (or with --demote, revoke) admin rights",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := sqlite.Open(cfg.DBPath)
		if err != nil {
			return err
		}
		defer store.Close()
		author, err := store.GetAuthorByUsername(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("author %q: %w", args[0], err)
		}
		if err := store.SetAuthorAdmin(cmd.Context(), author.ID, !demote); err != nil {
			return err
		}
		if demote {
			fmt.Printf("✓ %s is no longer an admin\n", author.Username)
		} else {
			fmt.Printf("✓ %s is now an admin\n", author.Username)
		}
		return nil
	},
}

func init() {
	statusAddCmd.Flags().StringVar(&statusName, "name", "", "Display name (default: the slug)")
	statusCmd.AddCommand(statusAddCmd, statusListCmd, statusRmCmd)

	authorPromoteCmd.Flags().BoolVar(&demote, "demote", false, "Revoke admin rights instead")
	authorCmd.AddCommand(authorPromoteCmd)

	rootCmd.AddCommand(migrateCmd, statusCmd, authorCmd)
}
