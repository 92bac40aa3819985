package main

import (
	"go-tweet-video-download/cmd/tweet-video-downloader/cmd"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
)

func main() {
	// TWEETVID_* settings may live in a local .env file.
	if err := godotenv.Load(); err != nil {
		log.Debug("No .env file loaded")
	}
	cmd.Execute()
}
