package models

import "time"

// ServerInfo describes one time-boxed room as returned by the lookup API.
// Field names follow the relay's wire format.
type ServerInfo struct {
	ServerName         string    `json:"server_name"`
	ServerID           string    `json:"server_id"`
	Expiration         time.Time `json:"expiration"`
	GlobalInvitationID string    `json:"global_invitation_id"`
	Owner              string    `json:"owner"`
}

// PresenceRecord is one active participant as the server reports it.
type PresenceRecord struct {
	UserID    string    `json:"userId"`
	Username  string    `json:"username"`
	IsOnline  bool      `json:"isOnline"`
	LastSeen  time.Time `json:"lastSeen"`
	BgColor   string    `json:"bgColor,omitempty"`
	TextColor string    `json:"textColor,omitempty"`
}

// PresenceSnapshot is a wholesale replacement of the active-user set. At
// orders snapshots so that a stale one racing a newer one can be discarded.
type PresenceSnapshot struct {
	At    time.Time        `json:"at"`
	Users []PresenceRecord `json:"users"`
}

type CreateServerRequest struct {
	ServerName    string `json:"serverName"`
	EncryptionKey string `json:"encryptionKey"`
	LifeSpan      int    `json:"lifeSpan"`
	Fingerprint   string `json:"fingerprint"`
}

// CreateServerResult is the room plus the owner identity the relay minted.
type CreateServerResult struct {
	Server   ServerInfo
	UserID   string
	Username string
	Token    string
}

type ConnectionState int

const (
	StateDisconnected ConnectionState = iota
	StateConnecting
	StateJoined
	StateErrored
	StateLeft
)

func (s ConnectionState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateJoined:
		return "joined"
	case StateErrored:
		return "errored"
	case StateLeft:
		return "left"
	default:
		return "unknown"
	}
}
