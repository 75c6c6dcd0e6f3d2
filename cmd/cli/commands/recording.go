package commands

import (
	"fmt"

	"github.com/livekit/protocol/livekit"
	"github.com/urfave/cli/v2"

	"github.com/livekit/livekit-server-sdk/pkg/service"
)

var (
	RecordingCommands = []*cli.Command{
		{
			Name:   "start-recording",
			Usage:  "record a room or a web page to a file, s3 or rtmp",
			Before: createRecordingClient,
			After:  closeRecordingClient,
			Action: startRecording,
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:  "room",
					Usage: "room to record, exclusive with --input-url",
				},
				&cli.StringFlag{
					Name:  "layout",
					Usage: "layout of the room recording",
					Value: "speaker-dark",
				},
				&cli.StringFlag{
					Name:  "input-url",
					Usage: "web page to record, exclusive with --room",
				},
				&cli.StringFlag{
					Name:  "file",
					Usage: "local file path of the recording",
				},
				&cli.StringFlag{
					Name:  "s3",
					Usage: "s3://bucket/key to upload the recording to",
				},
				&cli.StringSliceFlag{
					Name:  "rtmp",
					Usage: "rtmp urls to stream to",
				},
				&cli.StringFlag{
					Name:  "preset",
					Usage: "encoding preset, e.g. H264_1080P_30",
				},
				&cli.BoolFlag{
					Name: "audio-only",
				},
				&cli.BoolFlag{
					Name: "video-only",
				},
			},
		},
		{
			Name:   "stop-recording",
			Before: createRecordingClient,
			After:  closeRecordingClient,
			Action: stopRecording,
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:     "id",
					Usage:    "id of the recording",
					Required: true,
				},
			},
		},
	}

	recordingClient *service.RecordingClient
)

func createRecordingClient(c *cli.Context) error {
	apiKey, apiSecret, err := credentials(c)
	if err != nil {
		return err
	}
	recordingClient, err = service.NewRecordingClient(c.String(urlFlag.Name), apiKey, apiSecret)
	return err
}

func closeRecordingClient(_ *cli.Context) error {
	if recordingClient != nil {
		recordingClient.Close()
	}
	return nil
}

func startRecording(c *cli.Context) error {
	req := service.RecordingRequest{
		URL:       c.String("input-url"),
		File:      c.String("file"),
		S3Path:    c.String("s3"),
		RTMP:      c.StringSlice("rtmp"),
		AudioOnly: c.Bool("audio-only"),
		VideoOnly: c.Bool("video-only"),
	}
	if room := c.String("room"); room != "" {
		req.Template = &service.RecordingTemplate{
			RoomName: room,
			Layout:   c.String("layout"),
		}
	}
	if preset := c.String("preset"); preset != "" {
		value, ok := livekit.EncodingOptionsPreset_value[preset]
		if !ok {
			return fmt.Errorf("unknown preset %s", preset)
		}
		req.Preset = livekit.EncodingOptionsPreset(value)
	}

	id, err := recordingClient.StartRecording(c.Context, req)
	if err != nil {
		return err
	}

	fmt.Fprintln(c.App.Writer, "recording id:", id)
	return nil
}

func stopRecording(c *cli.Context) error {
	id := c.String("id")
	if err := recordingClient.EndRecording(c.Context, id); err != nil {
		return err
	}

	fmt.Fprintln(c.App.Writer, "stopped recording", id)
	return nil
}
