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

	"github.com/livekit/protocol/livekit"

	"github.com/livekit/livekit-server-sdk/pkg/auth"
)

// CreateRoomOptions are optional settings of a new room. Zero values leave the
// server defaults in place.
type CreateRoomOptions struct {
	EmptyTimeout    uint32
	MaxParticipants uint32
	Metadata        string
}

// RoomServiceClient manages rooms and their participants.
type RoomServiceClient struct {
	*twirpClient
	svc livekit.RoomService
}

func NewRoomServiceClient(url string, apiKey string, apiSecret string, opts ...ClientOption) (*RoomServiceClient, error) {
	c, err := newTwirpClient(url, apiKey, apiSecret, &auth.VideoGrant{
		RoomCreate: true,
		RoomList:   true,
		RoomAdmin:  true,
	}, opts...)
	if err != nil {
		return nil, err
	}
	return &RoomServiceClient{
		twirpClient: c,
		svc:         livekit.NewRoomServiceProtobufClient(c.url, c.httpClient, c.twirpOptions("RoomService")...),
	}, nil
}

func (c *RoomServiceClient) CreateRoom(ctx context.Context, name string, opts CreateRoomOptions) (*livekit.Room, error) {
	ctx, err := c.withAuth(ctx, "")
	if err != nil {
		return nil, err
	}
	return c.svc.CreateRoom(ctx, &livekit.CreateRoomRequest{
		Name:            name,
		EmptyTimeout:    opts.EmptyTimeout,
		MaxParticipants: opts.MaxParticipants,
		Metadata:        opts.Metadata,
	})
}

// ListRooms lists active rooms, limited to names when any are given.
func (c *RoomServiceClient) ListRooms(ctx context.Context, names ...string) ([]*livekit.Room, error) {
	ctx, err := c.withAuth(ctx, "")
	if err != nil {
		return nil, err
	}
	res, err := c.svc.ListRooms(ctx, &livekit.ListRoomsRequest{Names: names})
	if err != nil {
		return nil, err
	}
	return res.Rooms, nil
}

func (c *RoomServiceClient) DeleteRoom(ctx context.Context, room string) error {
	ctx, err := c.withAuth(ctx, "")
	if err != nil {
		return err
	}
	_, err = c.svc.DeleteRoom(ctx, &livekit.DeleteRoomRequest{Room: room})
	return err
}

func (c *RoomServiceClient) ListParticipants(ctx context.Context, room string) ([]*livekit.ParticipantInfo, error) {
	ctx, err := c.withAuth(ctx, room)
	if err != nil {
		return nil, err
	}
	res, err := c.svc.ListParticipants(ctx, &livekit.ListParticipantsRequest{Room: room})
	if err != nil {
		return nil, err
	}
	return res.Participants, nil
}

func (c *RoomServiceClient) GetParticipant(ctx context.Context, room string, identity string) (*livekit.ParticipantInfo, error) {
	ctx, err := c.withAuth(ctx, room)
	if err != nil {
		return nil, err
	}
	return c.svc.GetParticipant(ctx, &livekit.RoomParticipantIdentity{
		Room:     room,
		Identity: identity,
	})
}

func (c *RoomServiceClient) RemoveParticipant(ctx context.Context, room string, identity string) error {
	ctx, err := c.withAuth(ctx, room)
	if err != nil {
		return err
	}
	_, err = c.svc.RemoveParticipant(ctx, &livekit.RoomParticipantIdentity{
		Room:     room,
		Identity: identity,
	})
	return err
}

func (c *RoomServiceClient) MutePublishedTrack(ctx context.Context, room string, identity string, trackSid string, muted bool) (*livekit.TrackInfo, error) {
	ctx, err := c.withAuth(ctx, room)
	if err != nil {
		return nil, err
	}
	res, err := c.svc.MutePublishedTrack(ctx, &livekit.MuteRoomTrackRequest{
		Room:     room,
		Identity: identity,
		TrackSid: trackSid,
		Muted:    muted,
	})
	if err != nil {
		return nil, err
	}
	return res.Track, nil
}

// UpdateParticipant replaces metadata and, when permission is non-nil, the
// participant's permissions.
func (c *RoomServiceClient) UpdateParticipant(ctx context.Context, room string, identity string, metadata string, permission *livekit.ParticipantPermission) (*livekit.ParticipantInfo, error) {
	ctx, err := c.withAuth(ctx, room)
	if err != nil {
		return nil, err
	}
	return c.svc.UpdateParticipant(ctx, &livekit.UpdateParticipantRequest{
		Room:       room,
		Identity:   identity,
		Metadata:   metadata,
		Permission: permission,
	})
}

func (c *RoomServiceClient) UpdateSubscriptions(ctx context.Context, room string, identity string, trackSids []string, subscribe bool) error {
	ctx, err := c.withAuth(ctx, room)
	if err != nil {
		return err
	}
	_, err = c.svc.UpdateSubscriptions(ctx, &livekit.UpdateSubscriptionsRequest{
		Room:      room,
		Identity:  identity,
		TrackSids: trackSids,
		Subscribe: subscribe,
	})
	return err
}

// SendData delivers data to everyone in the room, or only to destinationSids
// when any are given.
func (c *RoomServiceClient) SendData(ctx context.Context, room string, data []byte, kind livekit.DataPacket_Kind, destinationSids ...string) error {
	ctx, err := c.withAuth(ctx, room)
	if err != nil {
		return err
	}
	_, err = c.svc.SendData(ctx, &livekit.SendDataRequest{
		Room:            room,
		Data:            data,
		Kind:            kind,
		DestinationSids: destinationSids,
	})
	return err
}

func (c *RoomServiceClient) UpdateRoomMetadata(ctx context.Context, room string, metadata string) (*livekit.Room, error) {
	ctx, err := c.withAuth(ctx, room)
	if err != nil {
		return nil, err
	}
	return c.svc.UpdateRoomMetadata(ctx, &livekit.UpdateRoomMetadataRequest{
		Room:     room,
		Metadata: metadata,
	})
}
