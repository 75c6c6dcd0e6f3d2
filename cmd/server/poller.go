package main

import (
	"context"
	"time"

	"github.com/bep/debounce"
	"github.com/livekit/protocol/livekit"

	"github.com/livekit/livekit-server-sdk/pkg/logger"
)

type RoomLister interface {
	ListRooms(ctx context.Context, names ...string) ([]*livekit.Room, error)
	ListParticipants(ctx context.Context, room string) ([]*livekit.ParticipantInfo, error)
}

// Poller refreshes the RoomTracker on an interval. Webhook events request an
// early refresh, bursts of them collapse into a single poll.
type Poller struct {
	client   RoomLister
	tracker  *RoomTracker
	interval time.Duration
	logger   logger.Logger

	debounced func(f func())
	trigger   chan struct{}
}

func NewPoller(client RoomLister, tracker *RoomTracker, interval time.Duration, debounceAfter time.Duration) *Poller {
	return &Poller{
		client:    client,
		tracker:   tracker,
		interval:  interval,
		logger:    logger.GetLogger().WithName("poller"),
		debounced: debounce.New(debounceAfter),
		trigger:   make(chan struct{}, 1),
	}
}

// Run polls until ctx is done. A zero interval only polls on request.
func (p *Poller) Run(ctx context.Context) error {
	var tick <-chan time.Time
	if p.interval > 0 {
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	p.pollAndLog(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-tick:
			p.pollAndLog(ctx)
		case <-p.trigger:
			p.pollAndLog(ctx)
		}
	}
}

// RequestRefresh schedules a poll once requests have settled.
func (p *Poller) RequestRefresh() {
	p.debounced(func() {
		select {
		case p.trigger <- struct{}{}:
		default:
		}
	})
}

// Poll lists rooms and their participants and replaces the tracked state.
func (p *Poller) Poll(ctx context.Context) error {
	rooms, err := p.client.ListRooms(ctx)
	if err != nil {
		return err
	}

	participants := make(map[string]int, len(rooms))
	for _, rm := range rooms {
		list, err := p.client.ListParticipants(ctx, rm.Name)
		if err != nil {
			// the room count from ListRooms is used instead
			p.logger.Debugw("could not list participants", "room", rm.Name, "error", err)
			continue
		}
		participants[rm.Name] = len(list)
	}

	started, finished := p.tracker.Replace(rooms, participants)
	for _, name := range started {
		p.logger.Infow("room active", "room", name)
	}
	for _, name := range finished {
		p.logger.Infow("room closed", "room", name)
	}
	return nil
}

func (p *Poller) pollAndLog(ctx context.Context) {
	if err := p.Poll(ctx); err != nil {
		if ctx.Err() == nil {
			p.logger.Warnw("could not poll rooms", err)
		}
		return
	}
	numRooms, numParticipants := p.tracker.Totals()
	p.logger.Infow("room stats", "rooms", numRooms, "participants", numParticipants)
}
