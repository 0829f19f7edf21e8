package main

import (
	"os"

	"github.com/joho/godotenv"

	"github.com/soumyarai2050/Flux-sub002/cmd/pairsd/cmd"
)

func main() {
	_ = godotenv.Load() // best-effort

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
