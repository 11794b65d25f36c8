package wire

import (
	"encoding/json"
	"fmt"
)

// envelopeType peeks at the "type" field of a raw frame without fully
// decoding it, so Decode can dispatch to the right concrete struct.
type envelopeType struct {
	Ver  int    `json:"ver"`
	Type string `json:"type"`
}

// Decode dispatches a raw frame to its concrete message type by its
// "type" field. The returned value is one of the message structs in this
// package as an any; callers switch on the concrete type.
func Decode(data []byte) (any, error) {
	var env envelopeType
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("wire: decode envelope: %w", err)
	}
	if env.Ver != 0 && env.Ver != Version {
		return nil, fmt.Errorf("wire: unsupported protocol version %d", env.Ver)
	}

	switch env.Type {
	case TypeClientHello:
		var msg ClientHello
		return msg, json.Unmarshal(data, &msg)
	case TypeServerWelcome:
		var msg ServerWelcome
		return msg, json.Unmarshal(data, &msg)
	case TypeJoinBaseline:
		var msg JoinBaseline
		return msg, json.Unmarshal(data, &msg)
	case TypeInputCmd:
		var msg InputCmd
		return msg, json.Unmarshal(data, &msg)
	case TypeSnapshot:
		var msg Snapshot
		return msg, json.Unmarshal(data, &msg)
	default:
		return nil, fmt.Errorf("wire: unknown message type %q", env.Type)
	}
}

// Encode fills in Ver and Type from the message's own identity (via a
// type switch) and marshals it.
func Encode(msg any) ([]byte, error) {
	switch m := msg.(type) {
	case ClientHello:
		m.Ver, m.Type = Version, TypeClientHello
		return json.Marshal(m)
	case ServerWelcome:
		m.Ver, m.Type = Version, TypeServerWelcome
		return json.Marshal(m)
	case JoinBaseline:
		m.Ver, m.Type = Version, TypeJoinBaseline
		return json.Marshal(m)
	case InputCmd:
		m.Ver, m.Type = Version, TypeInputCmd
		return json.Marshal(m)
	case Snapshot:
		m.Ver, m.Type = Version, TypeSnapshot
		return json.Marshal(m)
	default:
		return nil, fmt.Errorf("wire: unsupported message type %T", msg)
	}
}
