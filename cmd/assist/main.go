// Command assist talks to HoloAssist from a terminal.
//
// Usage:
//
//	assist [flags] <command> [args]
//
// Commands:
//
//	talk    - Voice session on this machine's microphone and speakers
//	ask     - Run a one-shot feature (chat, maps, vision, video, speech...)
//	stream  - Stream an audio file to a running server over websocket
//
// Configuration is read from the environment and .env, like the server.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
