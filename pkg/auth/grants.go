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

package auth

import (
	"bytes"
	"fmt"
)

// Flag is an optional capability. FlagUnset defers to the server's default policy,
// FlagTrue and FlagFalse are explicit.
type Flag uint8

const (
	FlagUnset Flag = iota
	FlagTrue
	FlagFalse
)

func FlagOf(v bool) Flag {
	if v {
		return FlagTrue
	}
	return FlagFalse
}

func (f Flag) IsSet() bool {
	return f == FlagTrue || f == FlagFalse
}

// Value resolves the flag, returning def when it is unset.
func (f Flag) Value(def bool) bool {
	switch f {
	case FlagTrue:
		return true
	case FlagFalse:
		return false
	default:
		return def
	}
}

func (f Flag) String() string {
	switch f {
	case FlagTrue:
		return "true"
	case FlagFalse:
		return "false"
	default:
		return "unset"
	}
}

// MarshalJSON is only reached for set flags when the field is tagged omitempty.
func (f Flag) MarshalJSON() ([]byte, error) {
	switch f {
	case FlagTrue:
		return []byte("true"), nil
	case FlagFalse:
		return []byte("false"), nil
	default:
		return []byte("null"), nil
	}
}

func (f *Flag) UnmarshalJSON(data []byte) error {
	switch string(bytes.TrimSpace(data)) {
	case "true":
		*f = FlagTrue
	case "false":
		*f = FlagFalse
	case "null":
		*f = FlagUnset
	default:
		return fmt.Errorf("invalid flag value %s", data)
	}
	return nil
}

type VideoGrant struct {
	// actions on rooms
	RoomCreate bool `json:"roomCreate,omitempty"`
	RoomList   bool `json:"roomList,omitempty"`
	RoomRecord bool `json:"roomRecord,omitempty"`

	// actions on a particular room
	RoomAdmin bool   `json:"roomAdmin,omitempty"`
	RoomJoin  bool   `json:"roomJoin,omitempty"`
	Room      string `json:"room,omitempty"`

	// permissions within a room, unset means the server default applies
	CanPublish     Flag `json:"canPublish,omitempty"`
	CanSubscribe   Flag `json:"canSubscribe,omitempty"`
	CanPublishData Flag `json:"canPublishData,omitempty"`

	// participant isn't visible to others
	Hidden Flag `json:"hidden,omitempty"`
}

func (v *VideoGrant) Clone() *VideoGrant {
	if v == nil {
		return nil
	}
	clone := *v
	return &clone
}

type ClaimGrants struct {
	Identity string      `json:"identity,omitempty"`
	Video    *VideoGrant `json:"video,omitempty"`
	Metadata string      `json:"metadata,omitempty"`
}

func (c *ClaimGrants) Clone() *ClaimGrants {
	if c == nil {
		return nil
	}
	clone := *c
	clone.Video = c.Video.Clone()
	return &clone
}

// digestClaims carries the checksum of a signed payload. It is not part of the
// grant model and only appears in tokens produced by CreatePayloadDigestToken.
type digestClaims struct {
	Sha256 string `json:"sha256,omitempty"`
}
