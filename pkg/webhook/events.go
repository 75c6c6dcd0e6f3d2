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

package webhook

import (
	"github.com/pkg/errors"
)

type EventKind string

const (
	EventRoomStarted       EventKind = "room_started"
	EventRoomFinished      EventKind = "room_finished"
	EventParticipantJoined EventKind = "participant_joined"
	EventParticipantLeft   EventKind = "participant_left"
	EventRecordingFinished EventKind = "recording_finished"
)

var EventKinds = []EventKind{
	EventRoomStarted,
	EventRoomFinished,
	EventParticipantJoined,
	EventParticipantLeft,
	EventRecordingFinished,
}

// ParseEventKind maps a wire value onto the known event kinds. Matching is exact.
func ParseEventKind(s string) (EventKind, error) {
	for _, k := range EventKinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", errors.Wrapf(ErrUnknownEventKind, "%q", s)
}

func (k EventKind) String() string {
	return string(k)
}

type Event struct {
	Event         EventKind        `json:"event"`
	Room          *Room            `json:"room,omitempty"`
	Participant   *ParticipantInfo `json:"participant,omitempty"`
	RecordingInfo *RecordingInfo   `json:"recordingInfo,omitempty"`

	// unique per delivery, receivers may use it to drop duplicates
	ID        string `json:"id,omitempty"`
	CreatedAt int64  `json:"createdAt,omitempty"`
}

type Room struct {
	Sid             string `json:"sid,omitempty"`
	Name            string `json:"name,omitempty"`
	EmptyTimeout    uint32 `json:"emptyTimeout,omitempty"`
	MaxParticipants uint32 `json:"maxParticipants,omitempty"`
	CreationTime    int64  `json:"creationTime,omitempty"`
	TurnPassword    string `json:"turnPassword,omitempty"`
	Metadata        string `json:"metadata,omitempty"`
	NumParticipants uint32 `json:"numParticipants,omitempty"`
	ActiveRecording bool   `json:"activeRecording,omitempty"`
}

type ParticipantInfo struct {
	Sid        string                 `json:"sid,omitempty"`
	Identity   string                 `json:"identity,omitempty"`
	Name       string                 `json:"name,omitempty"`
	State      string                 `json:"state,omitempty"`
	Tracks     []*TrackInfo           `json:"tracks,omitempty"`
	Metadata   string                 `json:"metadata,omitempty"`
	JoinedAt   int64                  `json:"joinedAt,omitempty"`
	Hidden     bool                   `json:"hidden,omitempty"`
	Permission *ParticipantPermission `json:"permission,omitempty"`
}

type ParticipantPermission struct {
	CanSubscribe   bool `json:"canSubscribe,omitempty"`
	CanPublish     bool `json:"canPublish,omitempty"`
	CanPublishData bool `json:"canPublishData,omitempty"`
	Hidden         bool `json:"hidden,omitempty"`
	Recorder       bool `json:"recorder,omitempty"`
}

type TrackInfo struct {
	Sid       string `json:"sid,omitempty"`
	Type      string `json:"type,omitempty"`
	Name      string `json:"name,omitempty"`
	Muted     bool   `json:"muted,omitempty"`
	Width     uint32 `json:"width,omitempty"`
	Height    uint32 `json:"height,omitempty"`
	Simulcast bool   `json:"simulcast,omitempty"`
	Source    string `json:"source,omitempty"`
	MimeType  string `json:"mimeType,omitempty"`
}

type RecordingInfo struct {
	ID       string `json:"id,omitempty"`
	RoomName string `json:"roomName,omitempty"`
	// milliseconds
	Duration int64  `json:"duration,omitempty"`
	Error    string `json:"error,omitempty"`
	Location string `json:"location,omitempty"`
}

// RoomName returns the room an event relates to, if any.
func (e *Event) RoomName() string {
	switch {
	case e.Room != nil:
		return e.Room.Name
	case e.RecordingInfo != nil:
		return e.RecordingInfo.RoomName
	default:
		return ""
	}
}
