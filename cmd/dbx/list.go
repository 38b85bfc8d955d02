package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Ratio1/dropbox_sdk_go/pkg/files"
)

func newListCmd(a *app) *cobra.Command {
	var recursive bool
	cmd := &cobra.Command{
		Use:   "list [path]",
		Short: "List a folder",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "/"
			if len(args) == 1 {
				path = args[0]
			}
			client, err := a.userClient()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			it, err := files.ListDirectory(ctx, client, path, recursive)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for entry, err := range it.All(ctx) {
				if err != nil {
					return err
				}
				if err := files.RequireLive(entry); err != nil {
					return err
				}
				switch entry.(type) {
				case *files.FolderMetadata:
					fmt.Fprintf(out, "Folder: %s\n", files.DisplayPath(entry))
				case *files.FileMetadata:
					fmt.Fprintf(out, "File: %s\n", files.DisplayPath(entry))
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&recursive, "recursive", "r", false, "descend into subfolders")
	return cmd
}
