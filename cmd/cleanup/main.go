// Command cleanup runs one retention compaction: for every access point the
// most recent observations stay live and the rest move to the archive.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

// exitSoftware is returned when the store is unreachable or a move fails.
const exitSoftware = 70

func main() {
	_ = godotenv.Load()
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "cleanup:", err)
		var ue usageError
		if errors.As(err, &ue) {
			os.Exit(2)
		}
		os.Exit(exitSoftware)
	}
}
