package cmd

import (
	"fmt"
	"github.com/ValentinKolb/dSync/cmd/document"
	"github.com/ValentinKolb/dSync/cmd/watch"
	"github.com/spf13/cobra"
	"os"
)

const (
	Version = "0.3.0"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "dsync",
		Short: "document store synchronization",
		Long: fmt.Sprintf(`dSync (v%s)

Keeps local collections in sync with a shared document store.
dSync reads and writes documents with identity metadata (id, path)
and mirrors collections in real time through change subscriptions.`, Version),
		SilenceUsage: true,
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of dSync",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("dSync v%s\n", Version)
		},
	}
)

func init() {
	// Add Commands
	RootCmd.AddCommand(document.DocumentCommands)
	RootCmd.AddCommand(watch.WatchCmd)
	RootCmd.AddCommand(versionCmd)
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
