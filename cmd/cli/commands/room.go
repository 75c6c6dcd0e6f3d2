package commands

import (
	"fmt"

	"github.com/livekit/protocol/livekit"
	"github.com/urfave/cli/v2"
	"google.golang.org/protobuf/encoding/protojson"

	"github.com/livekit/livekit-server-sdk/pkg/service"
)

var (
	RoomCommands = []*cli.Command{
		{
			Name:   "create-room",
			Before: createRoomClient,
			After:  closeRoomClient,
			Action: createRoom,
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:     "name",
					Usage:    "name of the room",
					Required: true,
				},
				&cli.UintFlag{
					Name:  "empty-timeout",
					Usage: "seconds to keep the room open after everyone leaves",
				},
				&cli.UintFlag{
					Name:  "max-participants",
					Usage: "limit of participants, 0 for no limit",
				},
				&cli.StringFlag{
					Name: "metadata",
				},
			},
		},
		{
			Name:   "list-rooms",
			Before: createRoomClient,
			After:  closeRoomClient,
			Action: listRooms,
			Flags: []cli.Flag{
				&cli.StringSliceFlag{
					Name:  "name",
					Usage: "only list rooms with these names",
				},
			},
		},
		{
			Name:   "delete-room",
			Before: createRoomClient,
			After:  closeRoomClient,
			Action: deleteRoom,
			Flags:  []cli.Flag{roomFlag},
		},
		{
			Name:   "update-room-metadata",
			Before: createRoomClient,
			After:  closeRoomClient,
			Action: updateRoomMetadata,
			Flags: []cli.Flag{
				roomFlag,
				&cli.StringFlag{
					Name:     "metadata",
					Required: true,
				},
			},
		},
		{
			Name:   "list-participants",
			Before: createRoomClient,
			After:  closeRoomClient,
			Action: listParticipants,
			Flags:  []cli.Flag{roomFlag},
		},
		{
			Name:   "get-participant",
			Before: createRoomClient,
			After:  closeRoomClient,
			Action: getParticipant,
			Flags:  []cli.Flag{roomFlag, identityFlag},
		},
		{
			Name:   "remove-participant",
			Before: createRoomClient,
			After:  closeRoomClient,
			Action: removeParticipant,
			Flags:  []cli.Flag{roomFlag, identityFlag},
		},
		{
			Name:   "mute-track",
			Before: createRoomClient,
			After:  closeRoomClient,
			Action: muteTrack,
			Flags: []cli.Flag{
				roomFlag,
				identityFlag,
				&cli.StringFlag{
					Name:     "track",
					Usage:    "sid of the track",
					Required: true,
				},
				&cli.BoolFlag{
					Name:  "unmute",
					Usage: "unmute instead of mute",
				},
			},
		},
		{
			Name:   "update-participant",
			Before: createRoomClient,
			After:  closeRoomClient,
			Action: updateParticipant,
			Flags: []cli.Flag{
				roomFlag,
				identityFlag,
				&cli.StringFlag{
					Name: "metadata",
				},
				&cli.StringFlag{
					Name:  "permissions",
					Usage: `participant permissions as json, e.g. {"canPublish": false}`,
				},
			},
		},
		{
			Name:   "update-subscriptions",
			Before: createRoomClient,
			After:  closeRoomClient,
			Action: updateSubscriptions,
			Flags: []cli.Flag{
				roomFlag,
				identityFlag,
				&cli.StringSliceFlag{
					Name:     "track",
					Usage:    "sids of the tracks",
					Required: true,
				},
				&cli.BoolFlag{
					Name:  "unsubscribe",
					Usage: "unsubscribe instead of subscribe",
				},
			},
		},
		{
			Name:   "send-data",
			Before: createRoomClient,
			After:  closeRoomClient,
			Action: sendData,
			Flags: []cli.Flag{
				roomFlag,
				&cli.StringFlag{
					Name:     "data",
					Usage:    "payload to send",
					Required: true,
				},
				&cli.StringSliceFlag{
					Name:  "destination",
					Usage: "participant sids to send to, everyone when empty",
				},
				&cli.BoolFlag{
					Name:  "lossy",
					Usage: "send over the lossy channel",
				},
			},
		},
	}

	roomClient *service.RoomServiceClient
)

func createRoomClient(c *cli.Context) error {
	apiKey, apiSecret, err := credentials(c)
	if err != nil {
		return err
	}
	roomClient, err = service.NewRoomServiceClient(c.String(urlFlag.Name), apiKey, apiSecret)
	return err
}

func closeRoomClient(_ *cli.Context) error {
	if roomClient != nil {
		roomClient.Close()
	}
	return nil
}

func createRoom(c *cli.Context) error {
	room, err := roomClient.CreateRoom(c.Context, c.String("name"), service.CreateRoomOptions{
		EmptyTimeout:    uint32(c.Uint("empty-timeout")),
		MaxParticipants: uint32(c.Uint("max-participants")),
		Metadata:        c.String("metadata"),
	})
	if err != nil {
		return err
	}

	PrintJSON(c.App.Writer, room)
	return nil
}

func listRooms(c *cli.Context) error {
	rooms, err := roomClient.ListRooms(c.Context, c.StringSlice("name")...)
	if err != nil {
		return err
	}

	if c.Bool(jsonFlag.Name) {
		PrintJSON(c.App.Writer, &livekit.ListRoomsResponse{Rooms: rooms})
		return nil
	}
	printRooms(c.App.Writer, rooms)
	return nil
}

func deleteRoom(c *cli.Context) error {
	room := c.String(roomFlag.Name)
	if err := roomClient.DeleteRoom(c.Context, room); err != nil {
		return err
	}

	fmt.Fprintln(c.App.Writer, "deleted room", room)
	return nil
}

func updateRoomMetadata(c *cli.Context) error {
	room, err := roomClient.UpdateRoomMetadata(c.Context, c.String(roomFlag.Name), c.String("metadata"))
	if err != nil {
		return err
	}

	PrintJSON(c.App.Writer, room)
	return nil
}

func listParticipants(c *cli.Context) error {
	participants, err := roomClient.ListParticipants(c.Context, c.String(roomFlag.Name))
	if err != nil {
		return err
	}

	if c.Bool(jsonFlag.Name) {
		PrintJSON(c.App.Writer, &livekit.ListParticipantsResponse{Participants: participants})
		return nil
	}
	printParticipants(c.App.Writer, participants)
	return nil
}

func getParticipant(c *cli.Context) error {
	p, err := roomClient.GetParticipant(c.Context, c.String(roomFlag.Name), c.String(identityFlag.Name))
	if err != nil {
		return err
	}

	PrintJSON(c.App.Writer, p)
	return nil
}

func removeParticipant(c *cli.Context) error {
	room, identity := c.String(roomFlag.Name), c.String(identityFlag.Name)
	if err := roomClient.RemoveParticipant(c.Context, room, identity); err != nil {
		return err
	}

	fmt.Fprintln(c.App.Writer, "removed", identity, "from", room)
	return nil
}

func muteTrack(c *cli.Context) error {
	track, err := roomClient.MutePublishedTrack(c.Context,
		c.String(roomFlag.Name), c.String(identityFlag.Name), c.String("track"), !c.Bool("unmute"))
	if err != nil {
		return err
	}

	PrintJSON(c.App.Writer, track)
	return nil
}

func updateParticipant(c *cli.Context) error {
	var permission *livekit.ParticipantPermission
	if perms := c.String("permissions"); perms != "" {
		permission = &livekit.ParticipantPermission{}
		if err := protojson.Unmarshal([]byte(perms), permission); err != nil {
			return fmt.Errorf("could not parse permissions: %v", err)
		}
	}

	p, err := roomClient.UpdateParticipant(c.Context,
		c.String(roomFlag.Name), c.String(identityFlag.Name), c.String("metadata"), permission)
	if err != nil {
		return err
	}

	PrintJSON(c.App.Writer, p)
	return nil
}

func updateSubscriptions(c *cli.Context) error {
	subscribe := !c.Bool("unsubscribe")
	err := roomClient.UpdateSubscriptions(c.Context,
		c.String(roomFlag.Name), c.String(identityFlag.Name), c.StringSlice("track"), subscribe)
	if err != nil {
		return err
	}

	fmt.Fprintln(c.App.Writer, "updated subscriptions, subscribed:", subscribe)
	return nil
}

func sendData(c *cli.Context) error {
	kind := livekit.DataPacket_RELIABLE
	if c.Bool("lossy") {
		kind = livekit.DataPacket_LOSSY
	}
	err := roomClient.SendData(c.Context,
		c.String(roomFlag.Name), []byte(c.String("data")), kind, c.StringSlice("destination")...)
	if err != nil {
		return err
	}

	fmt.Fprintln(c.App.Writer, "sent data to", c.String(roomFlag.Name))
	return nil
}
