//go:build !linux

package main

import (
	"os"
	"runtime"

	"golang.design/x/hotkey/mainthread"
)

func init() {
	runtime.LockOSThread()
}

// Hotkey registration on macOS must happen on the main thread.
func main() {
	code := 0
	mainthread.Init(func() { code = run() })
	os.Exit(code)
}
