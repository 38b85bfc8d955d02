package files

import (
	"context"

	"github.com/Ratio1/dropbox_sdk_go/pkg/dropbox"
)

// ListFolder starts a listing of arg.Path. The root folder is "".
func ListFolder(ctx context.Context, c dropbox.UserAuth, arg *ListFolderArg) (*ListFolderResult, error) {
	return dropbox.Call[ListFolderResult, ListFolderError](ctx, c, dropbox.EndpointAPI, "files/list_folder", arg)
}

// ListFolderContinue fetches the page after cursor.
func ListFolderContinue(ctx context.Context, c dropbox.UserAuth, arg *ListFolderContinueArg) (*ListFolderResult, error) {
	return dropbox.Call[ListFolderResult, ListFolderContinueError](ctx, c, dropbox.EndpointAPI, "files/list_folder/continue", arg)
}

// ListFolderLongpoll blocks until the listing behind cursor changes or the
// timeout elapses. It is served from the notify endpoint and takes no token.
func ListFolderLongpoll(ctx context.Context, c dropbox.NoAuth, arg *ListFolderLongpollArg) (*ListFolderLongpollResult, error) {
	return dropbox.Call[ListFolderLongpollResult, ListFolderLongpollError](ctx, c, dropbox.EndpointNotify, "files/list_folder/longpoll", arg)
}

// GetMetadata returns the metadata of a file or folder.
func GetMetadata(ctx context.Context, c dropbox.UserAuth, arg *GetMetadataArg) (Metadata, error) {
	res, err := dropbox.Call[metadataValue, GetMetadataError](ctx, c, dropbox.EndpointAPI, "files/get_metadata", arg)
	if err != nil {
		return nil, err
	}
	return res.Metadata, nil
}

// Download opens the content of a file, optionally limited to a byte range.
// The caller must close the result.
func Download(ctx context.Context, c dropbox.UserAuth, arg *DownloadArg, rangeStart, rangeEnd *uint64) (*dropbox.DownloadResult[FileMetadata], error) {
	return dropbox.CallDownload[FileMetadata, DownloadError](ctx, c, dropbox.EndpointContent, "files/download", arg, rangeStart, rangeEnd)
}

// Upload stores content at arg.Path.
func Upload(ctx context.Context, c dropbox.UserAuth, arg *CommitInfo, content []byte) (*FileMetadata, error) {
	return dropbox.CallUpload[FileMetadata, UploadError](ctx, c, dropbox.EndpointContent, "files/upload", arg, content)
}

// CreateFolder creates a folder at arg.Path.
func CreateFolder(ctx context.Context, c dropbox.UserAuth, arg *CreateFolderArg) (*FolderMetadata, error) {
	res, err := dropbox.Call[CreateFolderResult, CreateFolderError](ctx, c, dropbox.EndpointAPI, "files/create_folder_v2", arg)
	if err != nil {
		return nil, err
	}
	return &res.Metadata, nil
}

// Delete removes the file or folder at arg.Path and returns its last metadata.
func Delete(ctx context.Context, c dropbox.UserAuth, arg *DeleteArg) (Metadata, error) {
	res, err := dropbox.Call[DeleteResult, DeleteError](ctx, c, dropbox.EndpointAPI, "files/delete_v2", arg)
	if err != nil {
		return nil, err
	}
	return res.Metadata.Metadata, nil
}
