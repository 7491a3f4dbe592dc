package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/teemow/resender/internal/config"
	"github.com/teemow/resender/internal/exclusion"
	"github.com/teemow/resender/internal/message"
)

func newExcludeCmd() *cobra.Command {
	var configFile string

	cmd := &cobra.Command{
		Use:   "exclude",
		Short: "Manage the exclusion list",
		Long: `Manage the list of recipients that are never resent to.

The list lives in EXCLUSION_FILE (default: excluded_emails.txt), one
address per line. Lines starting with # are comments.`,
	}
	cmd.PersistentFlags().StringVar(&configFile, "config", "", "Path to a YAML config file")

	loadStore := func() (*exclusion.Store, error) {
		cfg, err := config.LoadFromFile(configFile)
		if err != nil {
			return nil, err
		}
		return exclusion.Load(cfg.ExclusionFile)
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "add ADDRESS...",
		Short: "Add recipients to the exclusion list",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := loadStore()
			if err != nil {
				return err
			}
			return addExclusions(cmd, store, args)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List excluded recipients",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := loadStore()
			if err != nil {
				return err
			}
			for _, addr := range store.List() {
				fmt.Fprintln(cmd.OutOrStdout(), addr)
			}
			return nil
		},
	})

	return cmd
}

func addExclusions(cmd *cobra.Command, store *exclusion.Store, args []string) error {
	out := cmd.OutOrStdout()
	var invalid []string

	for _, raw := range args {
		addr := strings.ToLower(message.RecipientAddress(raw))
		if !message.ValidAddress(addr) {
			invalid = append(invalid, raw)
			continue
		}

		added, err := store.Add(addr)
		if err != nil {
			return err
		}
		if added {
			fmt.Fprintf(out, "Excluded %s\n", addr)
		} else {
			fmt.Fprintf(out, "%s is already excluded\n", addr)
		}
	}

	if len(invalid) > 0 {
		return fmt.Errorf("invalid email addresses: %s", strings.Join(invalid, ", "))
	}
	return nil
}
