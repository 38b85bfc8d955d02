// Package files wraps the files/* routes of the Dropbox API: the Metadata sum
// type, the typed route errors, and a lazily paginated DirectoryIterator.
package files
