package main

import (
	"github.com/spf13/cobra"

	"github.com/coldtrail/gitmirror/pkg/session"
)

func newCloneCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "clone",
		Short: "Clone a branch of a remote repository into a worktree",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := loadOptions(configPath)
			if err != nil {
				return err
			}
			opts.Clone = true
			return session.Clone(cmd.Context(), opts)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "gitmirror.toml", "path to the TOML config file")
	return cmd
}

func newPullCmd() *cobra.Command {
	var configPath string
	var force bool

	cmd := &cobra.Command{
		Use:   "pull",
		Short: "Bring an existing worktree up to date with its remote",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := loadOptions(configPath)
			if err != nil {
				return err
			}
			opts.Clone = force
			return session.Pull(cmd.Context(), opts)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "gitmirror.toml", "path to the TOML config file")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "force a full clone, ignoring any existing manifest")
	return cmd
}

func newVerifyCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Check a worktree against its manifest with no network activity",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := loadOptions(configPath)
			if err != nil {
				return err
			}
			return session.Verify(cmd.Context(), opts)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "gitmirror.toml", "path to the TOML config file")
	return cmd
}
