// Package dropbox_sdk picks between the real Dropbox API and a local sandbox
// from environment variables, so programs and tests run unchanged in both.
package dropbox_sdk
