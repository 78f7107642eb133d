package main

import (
	"fmt"
	"os"

	"vidtube/internal/app"
)

func main() {
	if err := app.Run(); err != nil {
		fmt.Fprintln(os.Stderr, "vidtube:", err)
		os.Exit(1)
	}
}
