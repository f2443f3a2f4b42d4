package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:   "gitmirror",
		Short: "Mirror a branch of a remote git repository to a local worktree",
	}

	root.AddCommand(newVersionCmd())
	root.AddCommand(newCloneCmd())
	root.AddCommand(newPullCmd())
	root.AddCommand(newVerifyCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("gitmirror 0.1.0-dev")
		},
	}
}
