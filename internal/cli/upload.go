package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dmitrijs2005/immichup/internal/config"
	"github.com/dmitrijs2005/immichup/internal/immich"
	"github.com/dmitrijs2005/immichup/internal/uploader"
)

func (a *app) newUploadCmd() *cobra.Command {
	var (
		recursive    bool
		skipExisting bool
	)

	cmd := &cobra.Command{
		Use:   "upload DIRECTORY",
		Short: "Upload photos and videos from a directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			profile, err := cfg.ResolveSession(a.sessionFlags())
			if err != nil {
				return err
			}

			client := immich.NewClient(immich.Session{
				ServerURL: profile.ServerURL,
				APIKey:    profile.APIKey,
			}, a.log)

			summary, err := uploader.New(client, a.log).Run(cmd.Context(), uploader.Options{
				Root:         args[0],
				Recursive:    recursive,
				Concurrency:  a.flagConcurrent,
				SkipExisting: skipExisting,
			})
			if err != nil {
				return err
			}

			summary.Render(cmd.OutOrStdout())
			if summary.Failed > 0 {
				return fmt.Errorf("%w: %d of %d files", errPartialFailure, summary.Failed, summary.Total())
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&recursive, "recursive", "r", true, "scan subdirectories")
	cmd.Flags().BoolVar(&skipExisting, "skip-existing", false, "ask the server which assets it already has before transferring bytes")
	return cmd
}
