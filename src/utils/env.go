package utils

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
)

const EnvFilename = ".env"

// InitEnvironmentVariables loads the optional .env file from the working
// directory. A missing file is fine: deployed environments set real
// variables instead.
func InitEnvironmentVariables() error {
	if os.Getenv("ENV") == "production" {
		log.Info("Running in production environment")
		return nil
	}

	if err := godotenv.Load(EnvFilename); err != nil {
		if os.IsNotExist(err) {
			log.Debugf("no %s file found, using the process environment", EnvFilename)
			return nil
		}

		return fmt.Errorf("failed to load %s file: %v", EnvFilename, err)
	}

	return nil
}

// EnvOrDefault returns the value of key, or fallback when key is unset or
// empty.
func EnvOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}

	return fallback
}
