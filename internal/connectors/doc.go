// Package connectors holds document sources that feed the ingest service
// without going through the CLI. See the inbox package for the watched
// drop directory.
package connectors
