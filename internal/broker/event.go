package broker

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// Kind identifies a broker event variant.
type Kind string

// Broker event variants. The API publishes exactly one event per committed
// mutation; the gateway fans each out to entitled sessions.
const (
	KindNewChannel    Kind = "NewChannel"
	KindNewServer     Kind = "NewServer"
	KindUserJoined    Kind = "UserJoined"
	KindUserLeft      Kind = "UserLeft"
	KindDeleteServer  Kind = "DeleteServer"
	KindDeleteChannel Kind = "DeleteChannel"
	KindUpdateServer  Kind = "UpdateServer"
	KindUpdateChannel Kind = "UpdateChannel"
	KindNewMessage    Kind = "NewMessage"
)

// Event is a server-internal notification referencing mutated entities by
// ID. Only the fields relevant to the variant are populated; the rest stay
// uuid.Nil. On the wire it is a one-key JSON envelope, for example
// {"NewChannel":{"channel_id":"..."}}.
type Event struct {
	Kind      Kind
	UserID    uuid.UUID
	ServerID  uuid.UUID
	ChannelID uuid.UUID
	MessageID uuid.UUID
}

// payload is the envelope body. Pointer fields distinguish absent from zero
// so each variant serialises exactly the fields its schema names.
type payload struct {
	UserID    *uuid.UUID `json:"user_id,omitempty"`
	ServerID  *uuid.UUID `json:"server_id,omitempty"`
	ChannelID *uuid.UUID `json:"channel_id,omitempty"`
	MessageID *uuid.UUID `json:"message_id,omitempty"`
}

// MarshalJSON encodes the event as its one-key envelope.
func (e Event) MarshalJSON() ([]byte, error) {
	var p payload
	switch e.Kind {
	case KindNewChannel, KindUpdateChannel:
		p.ChannelID = &e.ChannelID
	case KindNewServer, KindUserJoined, KindUserLeft:
		p.UserID = &e.UserID
		p.ServerID = &e.ServerID
	case KindDeleteServer, KindUpdateServer:
		p.ServerID = &e.ServerID
	case KindDeleteChannel:
		p.ServerID = &e.ServerID
		p.ChannelID = &e.ChannelID
	case KindNewMessage:
		p.ChannelID = &e.ChannelID
		p.MessageID = &e.MessageID
	default:
		return nil, fmt.Errorf("unknown broker event kind %q", e.Kind)
	}
	return json.Marshal(map[Kind]payload{e.Kind: p})
}

// UnmarshalJSON decodes a one-key envelope. An envelope without exactly one
// known variant key is an error.
func (e *Event) UnmarshalJSON(data []byte) error {
	var envelope map[Kind]payload
	if err := json.Unmarshal(data, &envelope); err != nil {
		return err
	}
	if len(envelope) != 1 {
		return fmt.Errorf("broker event envelope must have exactly one key, got %d", len(envelope))
	}

	for kind, p := range envelope {
		switch kind {
		case KindNewChannel, KindNewServer, KindUserJoined, KindUserLeft,
			KindDeleteServer, KindDeleteChannel, KindUpdateServer,
			KindUpdateChannel, KindNewMessage:
		default:
			return fmt.Errorf("unknown broker event kind %q", kind)
		}

		*e = Event{Kind: kind}
		if p.UserID != nil {
			e.UserID = *p.UserID
		}
		if p.ServerID != nil {
			e.ServerID = *p.ServerID
		}
		if p.ChannelID != nil {
			e.ChannelID = *p.ChannelID
		}
		if p.MessageID != nil {
			e.MessageID = *p.MessageID
		}
	}
	return nil
}
