// Command fgi renders the daily equity and crypto Fear & Greed image and posts it
// to the configured channels.
//
// Usage:
//
//	fgi run --config config.yaml
//	fgi run --dry-run
//	fgi setup
//
// Secrets are read from the environment (or a .env file):
//
//	RAPIDAPI_KEY, MISSKEY_HOST, MISSKEY_TOKEN, TWITTER_API_KEY, TWITTER_API_SECRET,
//	TWITTER_ACCESS_TOKEN, TWITTER_ACCESS_SECRET, BSKY_HANDLE, BSKY_APP_PASSWORD,
//	FGI_DATABASE_URL, GOOGLE_APPLICATION_CREDENTIALS
package main

import (
	"fmt"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

const (
	exitFatal         = 1
	exitPublishFailed = 2
)

// errPublishFailed the run completed but the fail policy rejected the publish results.
var errPublishFailed = errors.New("publish failed")

var rootCmd = &cobra.Command{
	Use:           "fgi",
	Short:         "Fear & Greed index image publisher",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if errors.Is(err, errPublishFailed) {
			os.Exit(exitPublishFailed)
		}
		os.Exit(exitFatal)
	}
}
