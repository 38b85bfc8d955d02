// Package download copies a remote file to a local writer, reopening the
// remote stream at the last written offset whenever a read fails. Errors while
// opening the stream or writing locally are not retried.
package download
