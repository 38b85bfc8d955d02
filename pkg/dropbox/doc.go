// Package dropbox implements the request layer of the Dropbox API v2: one
// Transport that turns a Request into a single HTTP exchange, three client
// variants that differ only in the authorization they attach, and generic
// helpers (Call, CallUpload, CallDownload) that route packages use to encode
// arguments and decode results and route errors.
//
// Each route has a fixed Style. RPC routes carry JSON in both directions,
// upload routes send arguments in the Dropbox-API-Arg header and content in
// the body, and download routes return the result in the Dropbox-API-Result
// response header while the body streams the content.
package dropbox
