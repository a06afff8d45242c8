// rconsole - remote console client for Source-style game servers.
//
// rconsole speaks the TCP remote-console protocol: it authenticates
// with the server password, sends admin commands one at a time, and
// matches replies by request id. Around that core it offers an
// interactive console, a one-shot exec mode, and a long-running
// gateway mode with an HTTP API, Prometheus metrics, MQTT telemetry
// and a SQLite command audit log.
package main

import (
	"fmt"
	"os"
)

const (
	AppName    = "rconsole"
	AppVersion = "1.0.0"
	Banner     = `
                                     _
  _ __ ___ ___  _ __  ___  ___ | | ___
 | '__/ __/ _ \| '_ \/ __|/ _ \| |/ _ \
 | | | (_| (_) | | | \__ \ (_) | |  __/
 |_|  \___\___/|_| |_|___/\___/|_|\___|  v%s
 Remote console client & gateway
`
)

func main() {
	if err := Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
