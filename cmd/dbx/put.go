package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Ratio1/dropbox_sdk_go/pkg/files"
)

func newPutCmd(a *app) *cobra.Command {
	var (
		overwrite  bool
		autorename bool
	)
	cmd := &cobra.Command{
		Use:   "put <local> <remote>",
		Short: "Upload a local file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read %s: %w", args[0], err)
			}
			client, err := a.userClient()
			if err != nil {
				return err
			}
			mode := files.WriteModeAdd
			if overwrite {
				mode = files.WriteModeOverwrite
			}
			meta, err := files.Upload(cmd.Context(), client, &files.CommitInfo{
				Path:       args[1],
				Mode:       mode,
				Autorename: autorename,
			}, data)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Uploaded: %s (%d bytes, rev %s)\n", files.DisplayPath(meta), meta.Size, meta.Rev)
			return nil
		},
	}
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "replace an existing file")
	cmd.Flags().BoolVar(&autorename, "autorename", false, "pick a free name on conflict")
	return cmd
}
