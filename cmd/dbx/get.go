package main

import (
	"fmt"
	"io"
	"os"
	"path"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/Ratio1/dropbox_sdk_go/pkg/download"
	"github.com/Ratio1/dropbox_sdk_go/pkg/files"
)

func newGetCmd(a *app) *cobra.Command {
	var (
		output     string
		offset     uint64
		maxResumes int
		quiet      bool
	)
	cmd := &cobra.Command{
		Use:   "get <path>",
		Short: "Download a file, resuming after dropped connections",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			remote := args[0]
			client, err := a.userClient()
			if err != nil {
				return err
			}
			if output == "" {
				output = path.Base(remote)
			}
			w, closeOutput, err := openOutput(cmd, output, offset)
			if err != nil {
				return err
			}
			defer closeOutput()

			source := files.NewDownloadSource(client, remote)
			opts := []download.Option{
				download.WithLogger(a.log),
				download.WithPolicy(download.Policy{MaxResumes: maxResumes}),
			}
			var bar *progressbar.ProgressBar
			if !quiet {
				opts = append(opts, download.WithProgress(func(done uint64, total *uint64) {
					if bar == nil {
						size := int64(-1)
						if total != nil {
							size = int64(*total)
						}
						bar = newProgressBar(cmd.ErrOrStderr(), path.Base(remote), size)
					}
					_ = bar.Set64(int64(done))
				}))
			}
			n, err := download.New(source, opts...).RunFrom(cmd.Context(), w, offset)
			if bar != nil {
				_ = bar.Finish()
			}
			if err != nil {
				return err
			}
			if meta := source.Metadata(); meta != nil && output != "-" {
				fmt.Fprintf(cmd.ErrOrStderr(), "%s: %d bytes, rev %s\n", output, n, meta.Rev)
			}
			return nil
		},
	}
	flags := cmd.Flags()
	flags.StringVarP(&output, "output", "o", "", `local file, "-" for stdout (default: base name of path)`)
	flags.Uint64Var(&offset, "offset", 0, "resume a partial local file from this byte offset")
	flags.IntVar(&maxResumes, "max-resumes", 0, "give up after this many reconnects (0 = unlimited)")
	flags.BoolVarP(&quiet, "quiet", "q", false, "hide the progress bar")
	return cmd
}

// newProgressBar draws on w; size -1 renders a spinner.
func newProgressBar(w io.Writer, name string, size int64) *progressbar.ProgressBar {
	return progressbar.NewOptions64(size,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription(name),
		progressbar.OptionSetWidth(30),
		progressbar.OptionShowBytes(true),
		progressbar.OptionShowCount(),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprintln(w)
		}),
	)
}

// openOutput truncates the file for a fresh download and appends when offset
// is set.
func openOutput(cmd *cobra.Command, name string, offset uint64) (io.Writer, func(), error) {
	if name == "-" {
		return cmd.OutOrStdout(), func() {}, nil
	}
	flag := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	if offset > 0 {
		flag = os.O_WRONLY | os.O_CREATE | os.O_APPEND
	}
	f, err := os.OpenFile(name, flag, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open output: %w", err)
	}
	if offset > 0 {
		info, err := f.Stat()
		if err != nil {
			f.Close()
			return nil, nil, fmt.Errorf("stat output: %w", err)
		}
		if uint64(info.Size()) != offset {
			f.Close()
			return nil, nil, fmt.Errorf("output %s has %d bytes, expected %d for --offset", name, info.Size(), offset)
		}
	}
	return f, func() { f.Close() }, nil
}
