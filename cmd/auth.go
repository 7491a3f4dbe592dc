package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/teemow/resender/internal/config"
	"github.com/teemow/resender/internal/google"
	"github.com/teemow/resender/internal/instrumentation"
)

func newAuthCmd() *cobra.Command {
	var (
		configFile string
		force      bool
	)

	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Authorize Gmail access",
		Long: `Run the Google OAuth flow once and store the token in TOKEN_FILE.

The OAuth client is read from CREDENTIALS_FILE (a desktop app client
downloaded from the Google Cloud console). A browser window is not opened
automatically: visit the printed URL and approve access; the token is
received on a local callback and refreshed automatically afterwards.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd)
			out := cmd.OutOrStdout()

			cfg, err := config.LoadFromFile(configFile)
			if err != nil {
				return err
			}

			if google.HasToken(cfg.TokenFile) && !force {
				fmt.Fprintf(out, "A token already exists at %s (use --force to replace it).\n", cfg.TokenFile)
				return nil
			}

			conf, err := google.LoadConfig(cfg.CredentialsFile, google.DefaultOAuthScopes...)
			if err != nil {
				return err
			}

			provider, stop, err := startInstrumentation(ctx, "auth", "", nil)
			if err != nil {
				return err
			}
			defer stop()
			metrics := provider.Metrics()

			tok, err := google.Authorize(ctx, conf, out)
			if err != nil {
				metrics.RecordOAuthAuth(ctx, instrumentation.OAuthResultFailure)
				return err
			}
			metrics.RecordOAuthAuth(ctx, instrumentation.OAuthResultSuccess)

			if err := google.SaveToken(cfg.TokenFile, tok); err != nil {
				return err
			}

			fmt.Fprintf(out, "Token saved to %s\n", cfg.TokenFile)
			return nil
		},
	}

	cmd.Flags().StringVar(&configFile, "config", "", "Path to a YAML config file")
	cmd.Flags().BoolVar(&force, "force", false, "Replace an existing token")

	return cmd
}
