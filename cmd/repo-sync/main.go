package main

import (
	"context"
	"errors"
	"io/fs"
	"log"
	"os"

	"github.com/joho/godotenv"

	"github.com/rancher/repo-sync/internal/app"
)

var version = "development"

func main() {
	// Flag sources read the environment while parsing, so .env must be loaded first.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Printf("failed to load .env: %v", err)
		os.Exit(1)
	}

	if err := app.NewCommand(version).Run(context.Background(), os.Args); err != nil {
		log.Printf("repo-sync failed: %v", err)
		os.Exit(1)
	}
}
