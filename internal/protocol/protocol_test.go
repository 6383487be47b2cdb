package protocol_test

import (
	"testing"

	"ohhell-server/internal/protocol"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCommand(t *testing.T) {
	var tests = []struct {
		payload string
		want    protocol.Command
	}{
		{"@PAnn", protocol.NameCommand("Ann")},
		{"@N7", protocol.StartCommand(7)},
		{"@S", protocol.ReadyCommand()},
		{"@s", protocol.Command{Code: protocol.CodeReadyAlt}},
		{"@B031", protocol.BidCommand(3, 1)},
		{"@B000", protocol.BidCommand(0, 0)},
		{"@C515", protocol.CardCommand(51, 5)},
		{"@A", protocol.AckCommand()},
		{"@1", protocol.RematchCommand(true)},
		{"@0", protocol.RematchCommand(false)},
		{"@T", protocol.TerminateCommand()},
		{"@K", protocol.KeepAliveCommand()},
	}

	for _, tt := range tests {
		t.Run(tt.payload, func(t *testing.T) {
			got, err := protocol.ParseCommand(tt.payload)
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEncodeCommand(t *testing.T) {
	assert := assert.New(t)

	assert.Equal("@B031", protocol.BidCommand(3, 1).Encode())
	assert.Equal("@C072", protocol.CardCommand(7, 2).Encode())
	assert.Equal("@C510", protocol.CardCommand(51, 0).Encode())
	assert.Equal("@N12", protocol.StartCommand(12).Encode())
	assert.Equal("@PBob", protocol.NameCommand("Bob").Encode())
	assert.Equal("@S", protocol.ReadyCommand().Encode())
	assert.Equal("@0", protocol.RematchCommand(false).Encode())
}

// Why: unknown codes used to be read as "play card"; they are now rejected.
func TestParseCommandRejects(t *testing.T) {
	var tests = []struct {
		payload string
		err     error
	}{
		{"@X12", protocol.ErrUnknownCode},
		{"@Z", protocol.ErrUnknownCode},
		{"", protocol.ErrMalformedCommand},
		{"@", protocol.ErrMalformedCommand},
		{"P Ann", protocol.ErrMalformedCommand},
		{"@P", protocol.ErrMalformedCommand},
		{"@Nseven", protocol.ErrMalformedCommand},
		{"@B3", protocol.ErrMalformedCommand},
		{"@Bab1", protocol.ErrMalformedCommand},
		{"@C07x", protocol.ErrMalformedCommand},
		{"@Sextra", protocol.ErrMalformedCommand},
	}

	for _, tt := range tests {
		t.Run(tt.payload, func(t *testing.T) {
			_, err := protocol.ParseCommand(tt.payload)
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestSnapshotEncode(t *testing.T) {
	triggers := protocol.NewTriggers()
	triggers.Bump(protocol.StartNumberSet)
	triggers.Bump(protocol.NewPack)
	triggers.Bump(protocol.CardsDealt)

	snap := protocol.Snapshot{
		Triggers: triggers,
		Players: []protocol.PlayerView{
			{Name: "Ann", Bid: -1},
			{Name: "Bob", Bid: 2},
		},
		Status: protocol.Status{InProgress: true, Trump: 12},
		Hand:   []int{3, 17, 40},
	}

	assert.Equal(t, "0-0-0-0-0-0-1-1-1-0-0-0---Ann-N--Bob-2---None---0-1-12---3-17-40", snap.Encode())
}

func TestSnapshotRoundTrip(t *testing.T) {
	triggers := protocol.NewTriggers()
	for i, k := range protocol.TriggerOrder {
		for range i + 1 {
			triggers.Bump(k)
		}
	}

	var tests = []struct {
		name string
		snap protocol.Snapshot
	}{
		{
			name: "lobby",
			snap: protocol.Snapshot{
				Triggers: protocol.NewTriggers(),
				Players:  []protocol.PlayerView{{Name: "", Bid: -1}, {Name: "Cy", Bid: -1}, {Name: "", Bid: -1}},
				Status:   protocol.Status{Trump: -1},
			},
		},
		{
			name: "mid trick",
			snap: protocol.Snapshot{
				Triggers: triggers,
				Players:  []protocol.PlayerView{{Name: "Ann", Bid: 0}, {Name: "Bob", Bid: 12}, {Name: "Cy", Bid: 3}},
				Board:    []int{51, 0},
				Status:   protocol.Status{Rematch: true, InProgress: true, Trump: 0},
				Hand:     []int{1, 2, 3, 4, 5},
			},
		},
		{
			name: "between games",
			snap: protocol.Snapshot{
				Triggers: triggers,
				Players:  []protocol.PlayerView{{Name: "Ann", Bid: -1}, {Name: "Bob", Bid: -1}},
				Status:   protocol.Status{Rematch: true, StartNumber: 25, Trump: -1},
			},
		},
		{
			name: "before first deal",
			snap: protocol.Snapshot{
				Triggers: protocol.NewTriggers(),
				Players:  []protocol.PlayerView{{Name: "Ann", Bid: -1}, {Name: "Bob", Bid: -1}},
				Status:   protocol.Status{InProgress: true, Trump: -1},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parsed, err := protocol.ParseSnapshot(tt.snap.Encode())
			require.NoError(t, err)
			assert.Equal(t, tt.snap, parsed)
		})
	}
}

func TestParseSnapshotRejects(t *testing.T) {
	var tests = []string{
		"",
		"0-0---Ann-N---None---0-0-0---None",
		"0-0-0-0-0-0-0-0-0-0-0-0---Ann---None---0-0-0---None",
		"0-0-0-0-0-0-0-0-0-0-0-0---Ann-x---None---0-0-0---None",
		"0-0-0-0-0-0-0-0-0-0-0-0---Ann-N---52---0-0-0---None",
		"0-0-0-0-0-0-0-0-0-0-0-0---Ann-N---None---0-0---None",
		"0-0-0-0-0-0-0-0-0-0-0-a---Ann-N---None---0-0-0---None",
	}

	for _, raw := range tests {
		_, err := protocol.ParseSnapshot(raw)
		assert.ErrorIs(t, err, protocol.ErrMalformedSnapshot, raw)
	}
}

func TestTriggersAdvanced(t *testing.T) {
	seen := protocol.NewTriggers()
	latest := seen.Clone()
	latest.Bump(protocol.TrickStart)
	latest.Bump(protocol.TrickEnd)
	latest.Bump(protocol.NewPack)

	assert.Equal(t, []protocol.Trigger{protocol.TrickEnd, protocol.NewPack, protocol.TrickStart}, seen.Advanced(latest))
	assert.Zero(t, seen[protocol.TrickStart], "clone must not alias")
}
