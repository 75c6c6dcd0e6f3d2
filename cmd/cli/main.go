package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/livekit/livekit-server-sdk/cmd/cli/commands"
	"github.com/livekit/livekit-server-sdk/pkg/logger"
	"github.com/livekit/livekit-server-sdk/version"
)

// command line util for the server APIs
func main() {
	app := commands.NewApp()
	app.Version = version.Version

	app.Before = func(c *cli.Context) error {
		level := "info"
		if c.Bool("verbose") {
			level = "debug"
		}
		logger.InitDevelopment(level)
		return nil
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
