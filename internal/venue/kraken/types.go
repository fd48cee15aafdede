package kraken

import (
	"encoding/json"
)

// subscribeRequest is the book subscription handshake message.
type subscribeRequest struct {
	Event        string       `json:"event"`
	Pair         []string     `json:"pair"`
	Subscription subscription `json:"subscription"`
}

type subscription struct {
	Name  string `json:"name"`
	Depth int    `json:"depth"`
}

// pingRequest is the keepalive frame Kraken expects periodically.
type pingRequest struct {
	Event string `json:"event"`
}

// eventMessage is the envelope of every dict-framed control message:
// systemStatus, subscriptionStatus, heartbeat, pong, and errors.
type eventMessage struct {
	Event        string `json:"event"`
	Status       string `json:"status"`
	ErrorMessage string `json:"errorMessage"`
}

// bookPayload is the book element of an array-framed channel message.
// Snapshots arrive under "bs"/"as", incremental deltas under "b"/"a"; both
// use [price, size, timestamp] string tuples. A delta size of "0" removes
// the level.
type bookPayload struct {
	SnapshotBids [][]string `json:"bs"`
	SnapshotAsks [][]string `json:"as"`
	Bids         [][]string `json:"b"`
	Asks         [][]string `json:"a"`
}

func (p *bookPayload) empty() bool {
	return len(p.SnapshotBids) == 0 && len(p.SnapshotAsks) == 0 && len(p.Bids) == 0 && len(p.Asks) == 0
}

// parseChannelMessage decodes an array-framed channel message
// [channelID, data, channelName, pair]. It returns false for anything that
// is not a well-formed book frame.
func parseChannelMessage(raw []byte) (*bookPayload, bool) {
	var frame []json.RawMessage
	if err := json.Unmarshal(raw, &frame); err != nil {
		return nil, false
	}
	if len(frame) < 4 {
		return nil, false
	}

	var channelName string
	if err := json.Unmarshal(frame[len(frame)-2], &channelName); err != nil {
		return nil, false
	}
	if len(channelName) < 4 || channelName[:4] != "book" {
		return nil, false
	}

	// Kraken occasionally splits bids and asks into separate data elements
	// within one frame; merge every dict between the channel ID and the
	// channel name.
	merged := &bookPayload{}
	for _, elem := range frame[1 : len(frame)-2] {
		var part bookPayload
		if err := json.Unmarshal(elem, &part); err != nil {
			continue
		}
		merged.SnapshotBids = append(merged.SnapshotBids, part.SnapshotBids...)
		merged.SnapshotAsks = append(merged.SnapshotAsks, part.SnapshotAsks...)
		merged.Bids = append(merged.Bids, part.Bids...)
		merged.Asks = append(merged.Asks, part.Asks...)
	}
	if merged.empty() {
		return nil, false
	}
	return merged, true
}
