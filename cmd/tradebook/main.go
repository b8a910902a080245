package main

import (
	"os"

	"github.com/joho/godotenv"

	"github.com/rustyeddy/tradebook/cmd/tradebook/cmd"
)

func main() {
	// A missing .env is fine; TRADEBOOK_* may come from the real environment.
	_ = godotenv.Load()

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
