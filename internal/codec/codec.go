// Package codec parses inbound frames into typed commands and serializes
// outbound events. A frame that fails to decode is the sender's problem
// alone; the codec never panics and never touches connection state.
package codec

import (
	"encoding/json"
	"fmt"

	"github.com/cuevacelis/1vs1core-sub000/pkg/types"
)

// DecodeError reports a malformed or unrecognized inbound frame.
type DecodeError struct {
	Reason string
}

func (e *DecodeError) Error() string { return "decode: " + e.Reason }

// Command is a validated inbound frame.
type Command struct {
	Type       string
	MatchID    int64
	PlayerID   int64
	ChampionID int64
	UserID     int64
	IsAdmin    bool
	Role       string
}

// Decode validates a raw frame against the closed command set.
func Decode(raw []byte) (Command, error) {
	var m types.ClientMessage
	if err := json.Unmarshal(raw, &m); err != nil {
		return Command{}, &DecodeError{Reason: "bad json"}
	}

	cmd := Command{
		Type:       m.Type,
		MatchID:    m.MatchID,
		PlayerID:   m.PlayerID,
		ChampionID: m.ChampionID,
	}
	if m.Data != nil {
		cmd.UserID = m.Data.UserID
		cmd.IsAdmin = m.Data.IsAdmin
		cmd.Role = m.Data.Role
	}

	switch m.Type {
	case types.TypeSubscribe:
		if m.MatchID <= 0 {
			return Command{}, &DecodeError{Reason: "subscribe requires a positive matchId"}
		}
	case types.TypeUnsubscribe:
		// no payload
	case types.TypeChampionSelected:
		if m.MatchID <= 0 || m.PlayerID <= 0 || m.ChampionID <= 0 {
			return Command{}, &DecodeError{Reason: "champion_selected requires positive matchId, playerId and championId"}
		}
	case types.TypeChampionLocked:
		if m.MatchID <= 0 || m.PlayerID <= 0 {
			return Command{}, &DecodeError{Reason: "champion_locked requires positive matchId and playerId"}
		}
	default:
		return Command{}, &DecodeError{Reason: fmt.Sprintf("unknown type %q", m.Type)}
	}
	return cmd, nil
}

// Encode serializes an outbound event. Event structs marshal by
// construction, so failures are limited to programmer error.
func Encode(ev types.Event) ([]byte, error) {
	return json.Marshal(ev)
}

// ErrorFrame builds the caller-only error reply for a rejected command.
func ErrorFrame(code, message string) []byte {
	b, _ := json.Marshal(types.Event{
		Type: types.TypeError,
		Data: &types.EventData{Code: code, Message: message},
	})
	return b
}
