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

package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/atomic"
)

var (
	roomCurrent        atomic.Int32
	participantCurrent atomic.Int32

	promRoomCurrent        prometheus.Gauge
	promParticipantCurrent prometheus.Gauge
)

func initRoomStats(reg prometheus.Registerer) {
	promRoomCurrent = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: livekitNamespace,
		Subsystem: sdkSubsystem,
		Name:      "room_total",
	})
	promParticipantCurrent = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: livekitNamespace,
		Subsystem: sdkSubsystem,
		Name:      "participant_total",
	})

	reg.MustRegister(promRoomCurrent)
	reg.MustRegister(promParticipantCurrent)
}

// SetRoomStats records the latest observed room and participant counts
func SetRoomStats(rooms int32, participants int32) {
	roomCurrent.Store(rooms)
	participantCurrent.Store(participants)
	if !initialized.Load() {
		return
	}
	promRoomCurrent.Set(float64(rooms))
	promParticipantCurrent.Set(float64(participants))
}

func RoomStats() (rooms int32, participants int32) {
	return roomCurrent.Load(), participantCurrent.Load()
}
