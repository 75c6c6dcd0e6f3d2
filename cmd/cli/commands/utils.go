package commands

import (
	"fmt"

	"github.com/urfave/cli/v2"
)

var (
	urlFlag = &cli.StringFlag{
		Name:    "url",
		Usage:   "url of the LiveKit server",
		EnvVars: []string{"LIVEKIT_URL"},
		Value:   "ws://localhost:7880",
	}
	apiKeyFlag = &cli.StringFlag{
		Name:    "api-key",
		EnvVars: []string{"LIVEKIT_API_KEY"},
	}
	secretFlag = &cli.StringFlag{
		Name:    "api-secret",
		EnvVars: []string{"LIVEKIT_API_SECRET"},
	}
	verboseFlag = &cli.BoolFlag{
		Name:  "verbose",
		Usage: "log rpc failures and debug output",
	}
	jsonFlag = &cli.BoolFlag{
		Name:  "json",
		Usage: "print results as json instead of tables",
	}

	roomFlag = &cli.StringFlag{
		Name:     "room",
		Aliases:  []string{"r"},
		Usage:    "name of the room",
		Required: true,
	}
	identityFlag = &cli.StringFlag{
		Name:     "identity",
		Aliases:  []string{"p"},
		Usage:    "identity of the participant",
		Required: true,
	}
)

// NewApp builds the CLI. Global flags are readable from every command.
func NewApp() *cli.App {
	app := &cli.App{
		Name:  "livekit-cli",
		Usage: "manage tokens, rooms and recordings of a LiveKit server",
		Flags: []cli.Flag{
			urlFlag,
			apiKeyFlag,
			secretFlag,
			verboseFlag,
			jsonFlag,
		},
	}

	app.Commands = append(app.Commands, TokenCommands...)
	app.Commands = append(app.Commands, RoomCommands...)
	app.Commands = append(app.Commands, RecordingCommands...)
	return app
}

func credentials(c *cli.Context) (string, string, error) {
	apiKey := c.String(apiKeyFlag.Name)
	apiSecret := c.String(secretFlag.Name)
	if apiKey == "" || apiSecret == "" {
		return "", "", fmt.Errorf("api-key and api-secret are required")
	}
	return apiKey, apiSecret, nil
}
