package commands

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/livekit/protocol/livekit"
	"github.com/olekukonko/tablewriter"
	"github.com/thoas/go-funk"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
)

func PrintJSON(w io.Writer, msg proto.Message) {
	txt, _ := protojson.MarshalOptions{Multiline: true, Indent: "  "}.Marshal(msg)
	fmt.Fprintln(w, string(txt))
}

func newTable(w io.Writer, header ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetAutoWrapText(false)
	table.SetHeader(header)
	return table
}

func printRooms(w io.Writer, rooms []*livekit.Room) {
	table := newTable(w, "SID", "Name", "Participants", "Max", "Created", "Metadata")
	for _, rm := range rooms {
		table.Append([]string{
			rm.Sid,
			rm.Name,
			fmt.Sprintf("%d", rm.NumParticipants),
			maxParticipants(rm.MaxParticipants),
			sinceUnix(rm.CreationTime),
			rm.Metadata,
		})
	}
	table.Render()
}

func printParticipants(w io.Writer, participants []*livekit.ParticipantInfo) {
	table := newTable(w, "SID", "Identity", "State", "Joined", "Tracks")
	for _, p := range participants {
		table.Append([]string{
			p.Sid,
			p.Identity,
			p.State.String(),
			sinceUnix(p.JoinedAt),
			trackSummary(p.Tracks),
		})
	}
	table.Render()
}

func trackSummary(tracks []*livekit.TrackInfo) string {
	names := funk.Map(tracks, func(t *livekit.TrackInfo) string {
		label := fmt.Sprintf("%s (%s)", t.Sid, strings.ToLower(t.Type.String()))
		if t.Muted {
			label += " muted"
		}
		return label
	}).([]string)
	return strings.Join(names, ", ")
}

func maxParticipants(n uint32) string {
	if n == 0 {
		return "unlimited"
	}
	return humanize.Comma(int64(n))
}

func sinceUnix(ts int64) string {
	if ts == 0 {
		return "-"
	}
	return humanize.Time(time.Unix(ts, 0))
}
