package commands

import (
	"fmt"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/livekit/livekit-server-sdk/pkg/auth"
	"github.com/livekit/livekit-server-sdk/pkg/utils"
)

var (
	TokenCommands = []*cli.Command{
		{
			Name:   "create-token",
			Usage:  "create token for Room APIs",
			Action: createToken,
			Flags: []cli.Flag{
				&cli.BoolFlag{
					Name:  "join",
					Usage: "enable token to be used to join a room",
				},
				&cli.BoolFlag{
					Name:  "create",
					Usage: "enable token to be used to create rooms",
				},
				&cli.BoolFlag{
					Name:  "list",
					Usage: "enable token to be used to list rooms",
				},
				&cli.BoolFlag{
					Name:  "admin",
					Usage: "enable token to manage participants of --room",
				},
				&cli.BoolFlag{
					Name:  "record",
					Usage: "enable token to be used to record rooms",
				},
				&cli.BoolFlag{
					Name:  "hidden",
					Usage: "participant is not visible to others, used with --join",
				},
				&cli.BoolFlag{
					Name:  "subscribe-only",
					Usage: "participant can subscribe but not publish, used with --join",
				},
				&cli.StringFlag{
					Name:    "participant",
					Aliases: []string{"p"},
					Usage:   "unique name of the participant, used with --join",
				},
				&cli.StringFlag{
					Name:    "room",
					Aliases: []string{"r"},
					Usage:   "name of the room to join, empty to allow joining all rooms",
				},
				&cli.StringFlag{
					Name:  "metadata",
					Usage: "participant metadata carried in the token",
				},
				&cli.DurationFlag{
					Name:  "valid-for",
					Usage: "lifetime of the token",
					Value: auth.DefaultValidDuration,
				},
			},
		},
		{
			Name:      "verify-token",
			Usage:     "verify a token against the api key and secret and print its grants",
			ArgsUsage: "TOKEN",
			Action:    verifyToken,
		},
		{
			Name:   "generate-keys",
			Usage:  "generates an API key and secret pair",
			Action: generateKeys,
		},
	}
)

func createToken(c *cli.Context) error {
	apiKey, apiSecret, err := credentials(c)
	if err != nil {
		return err
	}
	p := c.String("participant") // required only for join

	grant := &auth.VideoGrant{
		RoomCreate: c.Bool("create"),
		RoomList:   c.Bool("list"),
		RoomRecord: c.Bool("record"),
		RoomAdmin:  c.Bool("admin"),
		Room:       c.String("room"),
	}
	if c.Bool("join") {
		grant.RoomJoin = true
		if p == "" {
			return fmt.Errorf("participant name is required")
		}
		if c.Bool("hidden") {
			grant.Hidden = auth.FlagTrue
		}
		if c.Bool("subscribe-only") {
			grant.CanPublish = auth.FlagFalse
			grant.CanPublishData = auth.FlagFalse
			grant.CanSubscribe = auth.FlagTrue
		}
	}
	if grant.RoomAdmin && grant.Room == "" {
		return fmt.Errorf("--admin requires --room")
	}

	if !grant.RoomJoin && !grant.RoomCreate && !grant.RoomList && !grant.RoomAdmin && !grant.RoomRecord {
		return fmt.Errorf("one of --join, --create, --list, --admin or --record is required")
	}

	token, err := auth.NewAccessToken(apiKey, apiSecret).
		AddGrant(grant).
		SetIdentity(p).
		SetMetadata(c.String("metadata")).
		SetValidFor(c.Duration("valid-for")).
		ToJWT()
	if err != nil {
		return err
	}

	fmt.Fprintln(c.App.Writer, "access token: ", token)
	return nil
}

func verifyToken(c *cli.Context) error {
	apiKey, apiSecret, err := credentials(c)
	if err != nil {
		return err
	}
	token := strings.TrimPrefix(strings.TrimSpace(c.Args().First()), auth.BearerPrefix)
	if token == "" {
		return fmt.Errorf("token is required")
	}

	v, err := auth.ParseAPIToken(token)
	if err != nil {
		return err
	}
	grants, err := v.Verify(apiKey, apiSecret)
	if err != nil {
		return err
	}

	w := c.App.Writer
	fmt.Fprintln(w, "valid token for", v.APIKey())
	if id := v.Identity(); id != "" {
		fmt.Fprintln(w, "identity:", id)
	}
	if grants.Metadata != "" {
		fmt.Fprintln(w, "metadata:", grants.Metadata)
	}
	if video := grants.Video; video != nil {
		table := newTable(w, "Grant", "Value")
		table.AppendBulk([][]string{
			{"room", video.Room},
			{"roomJoin", fmt.Sprint(video.RoomJoin)},
			{"roomCreate", fmt.Sprint(video.RoomCreate)},
			{"roomList", fmt.Sprint(video.RoomList)},
			{"roomAdmin", fmt.Sprint(video.RoomAdmin)},
			{"roomRecord", fmt.Sprint(video.RoomRecord)},
			{"canPublish", video.CanPublish.String()},
			{"canSubscribe", video.CanSubscribe.String()},
			{"canPublishData", video.CanPublishData.String()},
			{"hidden", video.Hidden.String()},
		})
		table.Render()
	}
	return nil
}

func generateKeys(c *cli.Context) error {
	apiKey := utils.NewGuid(utils.APIKeyPrefix)
	secret := utils.RandomSecret()
	fmt.Fprintln(c.App.Writer, "API Key: ", apiKey)
	fmt.Fprintln(c.App.Writer, "API Secret: ", secret)
	return nil
}
