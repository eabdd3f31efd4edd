// Package transport holds pieces shared by the transport implementations:
// the JSON wire codec and the bounded command inbox.
package transport

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/felixgeelhaar/heapscope/domain/agent"
	domaintransport "github.com/felixgeelhaar/heapscope/domain/transport"
)

// Replies sent to a client after it submits a command.
const (
	ReplyOK   = "ok"
	ReplyBusy = "busy"
)

// ErrStopSubscription can be returned by a subscription callback to end
// the subscription without an error.
var ErrStopSubscription = errors.New("stop subscription")

// Envelope is a decoded message whose payload is left undecoded.
type Envelope struct {
	domaintransport.Message
	Payload json.RawMessage `json:"payload,omitempty"`
}

// EncodeMessage encodes msg as one JSON document.
func EncodeMessage(msg domaintransport.Message) ([]byte, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("encode %s message: %w", msg.Event, err)
	}
	return data, nil
}

// DecodeMessage decodes a JSON document produced by EncodeMessage.
func DecodeMessage(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("decode message: %w", err)
	}
	return env, nil
}

// DecodeCommand parses a command frame. Surrounding whitespace is ignored.
func DecodeCommand(data []byte) agent.Command {
	return agent.ParseCommand(strings.TrimSpace(string(data)))
}
