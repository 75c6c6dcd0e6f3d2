package main

import (
	"sync"
	"time"

	"github.com/elliotchance/orderedmap/v2"
	"github.com/livekit/protocol/livekit"

	"github.com/livekit/livekit-server-sdk/pkg/telemetry/prometheus"
	"github.com/livekit/livekit-server-sdk/pkg/webhook"
)

// RoomSummary is the tracked state of a single room.
type RoomSummary struct {
	Name         string
	Sid          string
	Participants int
	Recording    bool
	UpdatedAt    time.Time
}

// RoomTracker keeps the rooms known to be active, in the order they were first
// seen. Polls replace its state, webhook events patch it in between.
type RoomTracker struct {
	mu    sync.Mutex
	rooms *orderedmap.OrderedMap[string, *RoomSummary]
	now   func() time.Time
}

func NewRoomTracker() *RoomTracker {
	return &RoomTracker{
		rooms: orderedmap.NewOrderedMap[string, *RoomSummary](),
		now:   time.Now,
	}
}

// Replace sets the tracked rooms to the polled state and returns the names of
// rooms that appeared and disappeared since the previous state.
func (t *RoomTracker) Replace(rooms []*livekit.Room, participants map[string]int) (started []string, finished []string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	seen := make(map[string]struct{}, len(rooms))
	for _, rm := range rooms {
		seen[rm.Name] = struct{}{}
		count, ok := participants[rm.Name]
		if !ok {
			count = int(rm.NumParticipants)
		}

		summary, ok := t.rooms.Get(rm.Name)
		if !ok {
			summary = &RoomSummary{Name: rm.Name}
			t.rooms.Set(rm.Name, summary)
			started = append(started, rm.Name)
		}
		summary.Sid = rm.Sid
		summary.Participants = count
		summary.Recording = rm.ActiveRecording
		summary.UpdatedAt = now
	}

	for _, name := range t.rooms.Keys() {
		if _, ok := seen[name]; !ok {
			t.rooms.Delete(name)
			finished = append(finished, name)
		}
	}

	t.recordStatsLocked()
	return
}

// Apply patches the tracked state with a webhook event.
func (t *RoomTracker) Apply(event *webhook.Event) {
	name := event.RoomName()
	if name == "" {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	switch event.Event {
	case webhook.EventRoomStarted:
		if _, ok := t.rooms.Get(name); !ok {
			t.rooms.Set(name, &RoomSummary{Name: name, Sid: roomSid(event), UpdatedAt: t.now()})
		}

	case webhook.EventRoomFinished:
		t.rooms.Delete(name)

	case webhook.EventParticipantJoined, webhook.EventParticipantLeft:
		summary, ok := t.rooms.Get(name)
		if !ok {
			summary = &RoomSummary{Name: name, Sid: roomSid(event)}
			t.rooms.Set(name, summary)
		}
		if event.Event == webhook.EventParticipantJoined {
			summary.Participants++
		} else if summary.Participants > 0 {
			summary.Participants--
		}
		summary.UpdatedAt = t.now()

	case webhook.EventRecordingFinished:
		if summary, ok := t.rooms.Get(name); ok {
			summary.Recording = false
			summary.UpdatedAt = t.now()
		}
	}

	t.recordStatsLocked()
}

// Snapshot returns copies of the tracked rooms in the order they were first seen.
func (t *RoomTracker) Snapshot() []RoomSummary {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]RoomSummary, 0, t.rooms.Len())
	for el := t.rooms.Front(); el != nil; el = el.Next() {
		out = append(out, *el.Value)
	}
	return out
}

func (t *RoomTracker) Totals() (rooms int, participants int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.totalsLocked()
}

func (t *RoomTracker) totalsLocked() (rooms int, participants int) {
	for el := t.rooms.Front(); el != nil; el = el.Next() {
		participants += el.Value.Participants
	}
	return t.rooms.Len(), participants
}

func (t *RoomTracker) recordStatsLocked() {
	rooms, participants := t.totalsLocked()
	prometheus.SetRoomStats(int32(rooms), int32(participants))
}

func roomSid(event *webhook.Event) string {
	if event.Room == nil {
		return ""
	}
	return event.Room.Sid
}
