// Package main provides the entry point for the topicofchange CLI tool.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/topicofchange/cmd/topicofchange/commands"
	"github.com/Sumatoshi-tech/topicofchange/pkg/version"
)

func main() {
	version.InitBinaryVersion()

	rootCmd := &cobra.Command{
		Use:   "topicofchange",
		Short: "Build topic-modeling corpora from git history",
		Long: `topicofchange mines a git repository into two corpora for topic modeling:

  <name>_files       one document per file at a reference
  <name>_changesets  one document per commit, made of its diff lines

Corpora are written in Mallet format with a gensim-style dictionary and
reused on the next run while the reference still points at the same commit.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(commands.NewCorporaCommand())
	rootCmd.AddCommand(commands.NewDictionaryCommand())
	rootCmd.AddCommand(versionCmd())

	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.String())
		},
	}
}
