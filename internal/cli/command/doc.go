// Package command defines the chathub-cli commands on top of
// urfave/cli/v2.
//
// Remote commands (status, health, messages) call a running server over
// HTTP. Offline commands (snapshot, config, hash) read the server's
// configuration file and work against the snapshot backend directly, so
// they also run while the server is down.
package command
