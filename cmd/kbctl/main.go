// Command kbctl lists, saves and deletes knowledge-base entries from the
// terminal, using the same backend client and filter/sort pipeline as the
// admin console.
package main

import (
	"errors"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/kbconsole/internal/backend"
)

// options are the persistent flags shared by every command.
type options struct {
	backendURL string
	deletePath string
	timeout    time.Duration
}

func main() {
	// A missing .env is fine; the environment may already be set.
	_ = godotenv.Load()

	if err := newRootCmd().Execute(); err != nil {
		color.New(color.FgRed).Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:           "kbctl",
		Short:         "Manage knowledge-base entries",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&opts.backendURL, "backend", defaultBackendURL(),
		"knowledge-base API base URL (env KBCTL_BACKEND_URL or BACKEND_URL)")
	root.PersistentFlags().StringVar(&opts.deletePath, "delete-path", os.Getenv("BACKEND_DELETE_PATH"),
		"delete route with {id} placeholder (default /api/delete/{id})")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", 30*time.Second, "per-request timeout")

	root.AddCommand(listCmd(opts))
	root.AddCommand(deleteCmd(opts))
	root.AddCommand(saveCmd(opts))
	return root
}

func defaultBackendURL() string {
	if u := os.Getenv("KBCTL_BACKEND_URL"); u != "" {
		return u
	}
	return os.Getenv("BACKEND_URL")
}

func (o *options) client() (*backend.Client, error) {
	if o.backendURL == "" {
		return nil, errors.New("backend URL not set (use --backend or KBCTL_BACKEND_URL)")
	}
	return backend.New(backend.Options{
		BaseURL:    o.backendURL,
		Timeout:    o.timeout,
		DeletePath: o.deletePath,
	})
}
