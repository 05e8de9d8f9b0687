// Command chathub-cli administers a ChatHub deployment.
//
// Usage:
//
//	chathub-cli [global flags] command [flags]
//	chathub-cli -s 127.0.0.1:8080 status
//	chathub-cli -c /etc/chathub/server.yaml snapshot verify
//	chathub-cli -o yaml config show
package main
