package config

import (
	"bufio"
	"fmt"
	"os"
	"runtime"
)

// WaitOnWindows keeps the console window open when the binary was started by
// double-clicking it, so the user can read the last message.
func WaitOnWindows() {
	if runtime.GOOS != "windows" || !IsInteractiveTerminal() {
		return
	}
	fmt.Print("\nPress Enter to exit...")
	_, _ = bufio.NewReader(os.Stdin).ReadString('\n')
}

// FatalWithWait prints the error, waits on Windows and exits with status 1.
// Used before the logger is configured.
func FatalWithWait(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "error: "+format+"\n", args...)
	WaitOnWindows()
	os.Exit(1)
}
