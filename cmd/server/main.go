package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/livekit/livekit-server-sdk/pkg/auth"
	"github.com/livekit/livekit-server-sdk/pkg/config"
	"github.com/livekit/livekit-server-sdk/pkg/telemetry/prometheus"
	"github.com/livekit/livekit-server-sdk/pkg/utils"
	"github.com/livekit/livekit-server-sdk/version"
)

// long lived, so a token can be pasted into a sample app
const joinTokenValidFor = 24 * time.Hour

var baseFlags = []cli.Flag{
	&cli.StringFlag{
		Name:  "config",
		Usage: "path to config file",
	},
	&cli.StringFlag{
		Name:    "config-body",
		Usage:   "config in YAML, typically passed in as an environment var in a container",
		EnvVars: []string{"LIVEKIT_CONFIG"},
	},
	&cli.StringFlag{
		Name:  "key-file",
		Usage: "path to file that contains API keys/secrets",
	},
	&cli.StringFlag{
		Name:    "keys",
		Usage:   "api keys (key: secret\\n)",
		EnvVars: []string{"LIVEKIT_KEYS"},
	},
	&cli.StringFlag{
		Name:    "redis-host",
		Usage:   "host (incl. port) to redis server, used to share webhook deduplication",
		EnvVars: []string{"REDIS_HOST"},
	},
	&cli.StringFlag{
		Name:    "redis-password",
		Usage:   "password to redis",
		EnvVars: []string{"REDIS_PASSWORD"},
	},
	&cli.BoolFlag{
		Name:  "dev",
		Usage: "sets log-level to debug, console formatter and placeholder keys. insecure for production",
	},
	&cli.BoolFlag{
		Name:   "disable-strict-config",
		Usage:  "disables strict config parsing",
		Hidden: true,
	},
}

func main() {
	generatedFlags, err := config.GenerateCLIFlags(baseFlags, true)
	if err != nil {
		fmt.Println(err)
	}

	app := &cli.App{
		Name:        "livekit-sdk-server",
		Usage:       "Receives LiveKit webhooks and tracks room activity",
		Description: "run without subcommands to start the server",
		Flags:       append(baseFlags, generatedFlags...),
		Action:      startServer,
		Commands: []*cli.Command{
			{
				Name:   "generate-keys",
				Usage:  "generates an API key and secret pair",
				Action: generateKeys,
			},
			{
				Name:   "create-join-token",
				Usage:  "create a room join token for development use",
				Action: createJoinToken,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "room",
						Usage:    "name of room to join",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "identity",
						Usage:    "identity of participant that holds the token",
						Required: true,
					},
					&cli.BoolFlag{
						Name:  "recorder",
						Usage: "creates a hidden participant that can only subscribe",
					},
				},
			},
			{
				Name:   "help-verbose",
				Usage:  "prints app help, including all generated configuration flags",
				Action: helpVerbose,
			},
		},
		Version: version.Version,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func getConfig(c *cli.Context) (*config.Config, error) {
	confString, err := config.GetConfigString(c.String("config"), c.String("config-body"))
	if err != nil {
		return nil, err
	}

	strictMode := true
	if c.Bool("disable-strict-config") {
		strictMode = false
	}

	conf, err := config.NewConfig(confString, strictMode, c, baseFlags)
	if err != nil {
		return nil, err
	}
	config.InitLoggerFromConfig(conf.Logging)
	return conf, nil
}

func startServer(c *cli.Context) error {
	conf, err := getConfig(c)
	if err != nil {
		return err
	}

	if err = conf.ValidateKeys(); err != nil {
		return err
	}

	prometheus.Init()

	server, err := InitializeServer(conf)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	return server.Start(ctx)
}

func generateKeys(c *cli.Context) error {
	_, _ = fmt.Fprintln(c.App.Writer, "API Key: ", utils.NewGuid(utils.APIKeyPrefix))
	_, _ = fmt.Fprintln(c.App.Writer, "API Secret: ", utils.RandomSecret())
	return nil
}

func createJoinToken(c *cli.Context) error {
	conf, err := getConfig(c)
	if err != nil {
		return err
	}
	if err = conf.ValidateKeys(); err != nil {
		return err
	}

	grant := &auth.VideoGrant{
		RoomJoin: true,
		Room:     c.String("room"),
	}
	if c.Bool("recorder") {
		grant.Hidden = auth.FlagTrue
		grant.CanPublish = auth.FlagFalse
		grant.CanPublishData = auth.FlagFalse
		grant.CanSubscribe = auth.FlagTrue
	}

	token, err := auth.NewAccessToken(conf.APIKey, conf.APISecret).
		AddGrant(grant).
		SetIdentity(c.String("identity")).
		SetValidFor(joinTokenValidFor).
		ToJWT()
	if err != nil {
		return err
	}

	_, _ = fmt.Fprintln(c.App.Writer, "Token:", token)
	return nil
}

func helpVerbose(c *cli.Context) error {
	generatedFlags, err := config.GenerateCLIFlags(baseFlags, false)
	if err != nil {
		return err
	}

	c.App.Flags = append(baseFlags, generatedFlags...)
	return cli.ShowAppHelp(c)
}
