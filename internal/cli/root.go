// Package cli wires the cobra command tree: the upload command around the
// core pipeline, and the user commands around the profile store. Exit-code
// policy lives here, not in the core.
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dmitrijs2005/immichup/internal/config"
	"github.com/dmitrijs2005/immichup/internal/logging"
)

// Exit codes: 0 clean run, 1 fatal error, 2 finished with per-file failures.
const (
	exitOK      = 0
	exitFatal   = 1
	exitPartial = 2
)

// errPartialFailure marks a run that completed but left some files failed.
var errPartialFailure = errors.New("completed with failures")

type app struct {
	log logging.Logger

	flagServer     string
	flagKey        string
	flagUser       string
	flagConcurrent int
	flagVerbose    bool
}

// NewRootCmd builds the immichup command tree.
func NewRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "immichup",
		Short:         "Upload photos and videos to an Immich server",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			a.log = logging.NewText(cmd.ErrOrStderr(), a.flagVerbose)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&a.flagServer, "server", "s", "", "Immich server URL (env "+config.EnvServerURL+")")
	pf.StringVarP(&a.flagKey, "key", "k", "", "Immich API key (env "+config.EnvAPIKey+")")
	pf.StringVarP(&a.flagUser, "user", "u", "", "use a named user from the configuration")
	pf.IntVarP(&a.flagConcurrent, "concurrent", "c", 10, "number of concurrent uploads")
	pf.BoolVarP(&a.flagVerbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(a.newUploadCmd())
	root.AddCommand(a.newUserCmd())
	return root
}

// Execute runs the CLI, translating errors into the exit-code policy.
// SIGINT/SIGTERM cancel the run context so in-flight uploads can resolve.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := NewRootCmd().ExecuteContext(ctx)
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, errPartialFailure):
		return exitPartial
	default:
		fmt.Fprintln(os.Stderr, "Error:", err)
		return exitFatal
	}
}

func (a *app) sessionFlags() config.Flags {
	return config.Flags{
		ServerURL: a.flagServer,
		APIKey:    a.flagKey,
		User:      a.flagUser,
	}
}
