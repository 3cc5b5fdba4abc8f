// main.go
//
// Entry point for the omnimusle server.
// Loads .env (development), then hands over to the cobra command tree in cmd.go.

package main

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/michaljagosz/omnimusle/internal/config"
)

func main() {
	_ = godotenv.Load()

	cfg := &config.Config{}
	if err := newRootCmd(cfg).Execute(); err != nil {
		log.Error().Err(err).Msg("omnimusle exited")
		os.Exit(1)
	}
}
