// Copyright 2023 LiveKit, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package service

import (
	"context"
	"net/url"
	"path"
	"strings"

	"github.com/livekit/protocol/livekit"
	"github.com/pkg/errors"

	"github.com/livekit/livekit-server-sdk/pkg/auth"
)

var ErrInvalidRecordingRequest = errors.New("invalid recording request")

// RecordingTemplate records a room through one of the egress layouts.
type RecordingTemplate struct {
	RoomName string
	Layout   string
}

// RecordingRequest describes what to record and where the result goes.
// Exactly one of Template and URL is required. The output is a file, either
// local or an s3://bucket/key path, or a set of RTMP urls.
type RecordingRequest struct {
	Template *RecordingTemplate
	URL      string

	File   string
	S3Path string
	RTMP   []string

	AudioOnly bool
	VideoOnly bool

	// Advanced takes precedence over Preset when set
	Preset   livekit.EncodingOptionsPreset
	Advanced *livekit.EncodingOptions
}

// RecordingClient starts and stops recordings on the egress service.
type RecordingClient struct {
	*twirpClient
	svc livekit.Egress
}

func NewRecordingClient(url string, apiKey string, apiSecret string, opts ...ClientOption) (*RecordingClient, error) {
	c, err := newTwirpClient(url, apiKey, apiSecret, &auth.VideoGrant{RoomRecord: true}, opts...)
	if err != nil {
		return nil, err
	}
	return &RecordingClient{
		twirpClient: c,
		svc:         livekit.NewEgressProtobufClient(c.url, c.httpClient, c.twirpOptions("Egress")...),
	}, nil
}

// StartRecording returns the id of the started recording, needed to end it.
func (c *RecordingClient) StartRecording(ctx context.Context, req RecordingRequest) (string, error) {
	if err := req.Validate(); err != nil {
		return "", err
	}
	file, stream, err := req.outputs()
	if err != nil {
		return "", err
	}

	var room string
	if req.Template != nil {
		room = req.Template.RoomName
	}
	ctx, err = c.withAuth(ctx, room)
	if err != nil {
		return "", err
	}

	var info *livekit.EgressInfo
	if req.Template != nil {
		info, err = c.svc.StartRoomCompositeEgress(ctx, req.roomCompositeRequest(file, stream))
	} else {
		info, err = c.svc.StartWebEgress(ctx, req.webRequest(file, stream))
	}
	if err != nil {
		return "", err
	}
	c.logger.Debugw("recording started", "egressID", info.EgressId, "room", room, "url", req.URL)
	return info.EgressId, nil
}

func (c *RecordingClient) EndRecording(ctx context.Context, id string) error {
	if id == "" {
		return errors.Wrap(ErrInvalidRecordingRequest, "recording id is required")
	}
	ctx, err := c.withAuth(ctx, "")
	if err != nil {
		return err
	}
	_, err = c.svc.StopEgress(ctx, &livekit.StopEgressRequest{EgressId: id})
	return err
}

func (r *RecordingRequest) Validate() error {
	switch {
	case r.Template == nil && r.URL == "":
		return errors.Wrap(ErrInvalidRecordingRequest, "template or url input is required")
	case r.Template != nil && r.URL != "":
		return errors.Wrap(ErrInvalidRecordingRequest, "template and url inputs are exclusive")
	case r.Template != nil && r.Template.RoomName == "":
		return errors.Wrap(ErrInvalidRecordingRequest, "template room name is required")
	case r.AudioOnly && r.VideoOnly:
		return errors.Wrap(ErrInvalidRecordingRequest, "audio only and video only are exclusive")
	}

	outputs := 0
	for _, set := range []bool{r.File != "", r.S3Path != "", len(r.RTMP) > 0} {
		if set {
			outputs++
		}
	}
	switch outputs {
	case 0:
		return errors.Wrap(ErrInvalidRecordingRequest, "file, s3 or rtmp output is required")
	case 1:
		return nil
	default:
		return errors.Wrap(ErrInvalidRecordingRequest, "only one of file, s3 and rtmp outputs can be set")
	}
}

func (r *RecordingRequest) outputs() (*livekit.EncodedFileOutput, *livekit.StreamOutput, error) {
	switch {
	case r.File != "":
		return &livekit.EncodedFileOutput{
			FileType: fileType(r.File),
			Filepath: r.File,
		}, nil, nil

	case r.S3Path != "":
		bucket, key, err := parseS3Path(r.S3Path)
		if err != nil {
			return nil, nil, err
		}
		return &livekit.EncodedFileOutput{
			FileType: fileType(key),
			Filepath: key,
			Output: &livekit.EncodedFileOutput_S3{
				S3: &livekit.S3Upload{Bucket: bucket},
			},
		}, nil, nil

	default:
		for _, u := range r.RTMP {
			if !strings.HasPrefix(u, "rtmp://") && !strings.HasPrefix(u, "rtmps://") {
				return nil, nil, errors.Wrapf(ErrInvalidRecordingRequest, "invalid rtmp url %q", u)
			}
		}
		return nil, &livekit.StreamOutput{
			Protocol: livekit.StreamProtocol_RTMP,
			Urls:     r.RTMP,
		}, nil
	}
}

func (r *RecordingRequest) roomCompositeRequest(file *livekit.EncodedFileOutput, stream *livekit.StreamOutput) *livekit.RoomCompositeEgressRequest {
	req := &livekit.RoomCompositeEgressRequest{
		RoomName:  r.Template.RoomName,
		Layout:    r.Template.Layout,
		AudioOnly: r.AudioOnly,
		VideoOnly: r.VideoOnly,
	}
	if file != nil {
		req.Output = &livekit.RoomCompositeEgressRequest_File{File: file}
	} else {
		req.Output = &livekit.RoomCompositeEgressRequest_Stream{Stream: stream}
	}
	if r.Advanced != nil {
		req.Options = &livekit.RoomCompositeEgressRequest_Advanced{Advanced: r.Advanced}
	} else {
		req.Options = &livekit.RoomCompositeEgressRequest_Preset{Preset: r.Preset}
	}
	return req
}

func (r *RecordingRequest) webRequest(file *livekit.EncodedFileOutput, stream *livekit.StreamOutput) *livekit.WebEgressRequest {
	req := &livekit.WebEgressRequest{
		Url:       r.URL,
		AudioOnly: r.AudioOnly,
		VideoOnly: r.VideoOnly,
	}
	if file != nil {
		req.Output = &livekit.WebEgressRequest_File{File: file}
	} else {
		req.Output = &livekit.WebEgressRequest_Stream{Stream: stream}
	}
	if r.Advanced != nil {
		req.Options = &livekit.WebEgressRequest_Advanced{Advanced: r.Advanced}
	} else {
		req.Options = &livekit.WebEgressRequest_Preset{Preset: r.Preset}
	}
	return req
}

func parseS3Path(s3Path string) (string, string, error) {
	u, err := url.Parse(s3Path)
	if err != nil {
		return "", "", errors.Wrap(ErrInvalidRecordingRequest, err.Error())
	}
	key := strings.TrimPrefix(u.Path, "/")
	if u.Scheme != "s3" || u.Host == "" || key == "" {
		return "", "", errors.Wrapf(ErrInvalidRecordingRequest, "invalid s3 path %q, expected s3://bucket/key", s3Path)
	}
	return u.Host, key, nil
}

func fileType(filepath string) livekit.EncodedFileType {
	switch strings.ToLower(path.Ext(filepath)) {
	case ".mp4":
		return livekit.EncodedFileType_MP4
	case ".ogg":
		return livekit.EncodedFileType_OGG
	default:
		return livekit.EncodedFileType_DEFAULT_FILETYPE
	}
}
