// Command fantoccini is a thin CLI over the fantoccini-go client, useful
// for smoke-testing a running WebDriver endpoint by hand.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "fantoccini",
		Short: "Drive a WebDriver session from the command line",
	}
	root.PersistentFlags().String("endpoint", "http://localhost:4444", "WebDriver endpoint")
	root.PersistentFlags().String("config", "", "path to a config file")
	root.PersistentFlags().Bool("trace", false, "log every wire request")

	root.AddCommand(newSessionCmd())
	return root
}
