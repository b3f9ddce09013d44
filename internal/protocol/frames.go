// Package protocol defines the wire frames exchanged over a session's
// websocket connection and the codec that reads and writes them.
//
// A frame is a single JSON object {"type": ..., "data": ...}. The content
// payload's Content field is opaque to the protocol: it is whatever the
// editable surface serialized, and is relayed verbatim.
package protocol

import "encoding/json"

// Frame types.
const (
	TypeContent     = "content"
	TypeUserData    = "user-data"
	TypeUserAdded   = "user-added"
	TypeUserRemoved = "user-removed"
)

// Identity describes one participant. UserID is empty until the server
// assigns it on join.
type Identity struct {
	UserID    string `json:"userId"`
	UserName  string `json:"userName"`
	UserColor string `json:"userColor"`
}

// Assigned reports whether the server has issued this identity an id yet.
func (id Identity) Assigned() bool { return id.UserID != "" }

// Position is a cursor location in the sender's screen coordinates.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// ContentPayload is the data of a "content" frame: the full surface state
// plus the originating cursor position and sender identity.
type ContentPayload struct {
	Content  string   `json:"content"`
	Position Position `json:"position"`
	UserData Identity `json:"userData"`
}

// PresencePayload is the data of the user-data / user-added / user-removed
// frames.
type PresencePayload struct {
	UserData Identity `json:"userData"`
}

// Frame is one protocol message. Data stays raw until the dispatcher knows
// the type.
type Frame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// ContentData decodes the frame's payload as a ContentPayload.
func (f Frame) ContentData() (ContentPayload, error) {
	var p ContentPayload
	err := json.Unmarshal(f.Data, &p)
	return p, err
}

// PresenceData decodes the frame's payload as a PresencePayload.
func (f Frame) PresenceData() (PresencePayload, error) {
	var p PresencePayload
	err := json.Unmarshal(f.Data, &p)
	return p, err
}
