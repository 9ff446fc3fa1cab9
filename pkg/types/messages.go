// Package types defines the wire contract for the real-time match channel.
//
// Client -> Server
//   subscribe:         matchId, data?: { userId?, isAdmin? }
//   unsubscribe:       {}
//   champion_selected: matchId, playerId, championId, data?: { role? }
//   champion_locked:   matchId, playerId
//
// Server -> room
//   champion_selected: matchId, playerId, championId
//   champion_locked:   matchId, playerId, championId
//   match_update:      matchId, data: { state, winnerId?, reason? }
//
// Server -> offending caller only
//   error: data: { code, message }
package types

const (
	TypeSubscribe        = "subscribe"
	TypeUnsubscribe      = "unsubscribe"
	TypeChampionSelected = "champion_selected"
	TypeChampionLocked   = "champion_locked"
	TypeMatchUpdate      = "match_update"
	TypeError            = "error"
)

// Error codes carried in the data block of an error frame.
const (
	CodeDecodeError  = "decode_error"
	CodeForbidden    = "forbidden"
	CodeNotFound     = "not_found"
	CodeInvalidState = "invalid_state"
	CodeBadRequest   = "bad_request"
	CodeInternal     = "internal"
)

type ClientMessage struct {
	Type       string      `json:"type"`
	MatchID    int64       `json:"matchId,omitempty"`
	PlayerID   int64       `json:"playerId,omitempty"`
	ChampionID int64       `json:"championId,omitempty"`
	Data       *ClientData `json:"data,omitempty"`
}

type ClientData struct {
	UserID  int64  `json:"userId,omitempty"`
	IsAdmin bool   `json:"isAdmin,omitempty"`
	Role    string `json:"role,omitempty"`
}

type Event struct {
	Type       string     `json:"type"`
	MatchID    int64      `json:"matchId,omitempty"`
	PlayerID   int64      `json:"playerId,omitempty"`
	ChampionID int64      `json:"championId,omitempty"`
	Data       *EventData `json:"data,omitempty"`
}

type EventData struct {
	State    string `json:"state,omitempty"`
	WinnerID int64  `json:"winnerId,omitempty"`
	Reason   string `json:"reason,omitempty"`
	Role     string `json:"role,omitempty"`
	Code     string `json:"code,omitempty"`
	Message  string `json:"message,omitempty"`
}
