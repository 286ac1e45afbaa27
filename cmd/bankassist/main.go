// Command bankassist runs the banking assistant server.
package main

import (
	"fmt"
	"os"

	"bankassist/cmd/internal/app"
)

func main() {
	if err := app.Run(); err != nil {
		fmt.Fprintln(os.Stderr, "bankassist:", err)
		os.Exit(1)
	}
}
