package amqp

import (
	"encoding/json"
	"time"
)

const (
	MirrorTypeSync   = "sync"
	MirrorTypeDelete = "delete"
)

// MirrorMessage is the envelope published on the mirror queue. A sync
// message carries only the prestation id, the worker fetches the full
// row from the database. A delete message is sent after the row is gone,
// so the worker only needs the id to find the spreadsheet line.
type MirrorMessage struct {
	Type      string    `json:"type"`
	ID        int64     `json:"id"`
	Timestamp time.Time `json:"timestamp"`
}

// NewMirrorSyncMessage creates a message asking the worker to mirror the
// prestation with the given id.
func NewMirrorSyncMessage(id int64) *MirrorMessage {
	return &MirrorMessage{
		Type:      MirrorTypeSync,
		ID:        id,
		Timestamp: time.Now(),
	}
}

// NewMirrorDeleteMessage creates a message asking the worker to remove
// the prestation row from the spreadsheet.
func NewMirrorDeleteMessage(id int64) *MirrorMessage {
	return &MirrorMessage{
		Type:      MirrorTypeDelete,
		ID:        id,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *MirrorMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// MirrorMessageFromJSON creates a message from JSON bytes
func MirrorMessageFromJSON(data []byte) (*MirrorMessage, error) {
	var msg MirrorMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
