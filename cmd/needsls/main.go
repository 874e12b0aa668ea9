package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

func main() {
	// NEEDSLS_* from a .env in the working directory; a missing file is fine
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
