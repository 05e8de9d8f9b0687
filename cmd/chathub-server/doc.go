// Command chathub-server runs the ChatHub HTTP service.
//
// At startup it restores accounts and recent messages from the configured
// snapshot backend, then serves the API and publishes a fresh snapshot on
// every interval and once more on shutdown.
//
// Usage:
//
//	chathub-server [-config /etc/chathub/server.yaml]
//
// Every setting can also be given as a CHATHUB_ environment variable, for
// example CHATHUB_SNAPSHOT_BACKEND=s3.
package main
