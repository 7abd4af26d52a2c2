package main

import (
	"github.com/joho/godotenv"
	"github.com/segmentio/topicspread/cmd/topicspread/subcmd"
	log "github.com/sirupsen/logrus"
)

var (
	// Version is the version of this binary. Overridden as part of the build process.
	Version = "dev"
)

func main() {
	// A .env file in the working directory can set TOPICSPREAD_* defaults.
	if err := godotenv.Load(); err != nil {
		log.Debugf("Not loading .env file: %+v", err)
	}

	subcmd.Execute(Version)
}
