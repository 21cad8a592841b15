package main

import (
	"fmt"
	"os"

	"github.com/utkarshgautam22/DiskForge/internal/app"
)

func main() {
	rootCmd := app.NewRootCommand(&app.Options{})
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
