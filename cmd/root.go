package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "traceon",
	Short: "Match photos against a gallery of known identities",
	Long: `TraceOn compares a face descriptor extracted from an uploaded photo against
a small gallery of known identities (missing persons) and returns the
matching identity's metadata.

The gallery is read from a YAML file, PostgreSQL or MariaDB. Descriptors are
produced by an external face embedding service.`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
}

func initConfig() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()
}
