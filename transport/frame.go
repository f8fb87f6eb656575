package transport

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/felixgeelhaar/mediate/behavior"
)

// Frame is a request sent over a frame transport.
type Frame struct {
	ID       string            `json:"id"`
	Name     string            `json:"name"`
	Payload  json.RawMessage   `json:"payload,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Reply answers the Frame with the same ID. Exactly one of Result and Error
// is set.
type Reply struct {
	ID     string     `json:"id"`
	Result any        `json:"result,omitempty"`
	Error  *ErrorBody `json:"error,omitempty"`
}

// handleFrame decodes and dispatches one frame. connMD holds the metadata of
// the connection and is overridden by the frame's own metadata.
func handleFrame(ctx context.Context, d Dispatcher, data []byte, connMD behavior.Metadata) Reply {
	var frame Frame
	if err := json.Unmarshal(data, &frame); err != nil {
		return errorReply("", fmt.Errorf("%w: %v", ErrMalformedRequest, err))
	}
	if frame.Name == "" {
		return errorReply(frame.ID, fmt.Errorf("%w: missing name", ErrMalformedRequest))
	}

	md := make(behavior.Metadata, len(connMD)+len(frame.Metadata))
	for k, v := range connMD {
		md[k] = v
	}
	for k, v := range frame.Metadata {
		md[k] = v
	}

	req, err := d.Decode(frame.Name, frame.Payload)
	if err != nil {
		return errorReply(frame.ID, decodeError(err))
	}

	result, err := d.Dispatch(requestContext(ctx, md), req)
	if err != nil {
		return errorReply(frame.ID, err)
	}
	return Reply{ID: frame.ID, Result: result}
}

func errorReply(id string, err error) Reply {
	body := NewErrorBody(err)
	return Reply{ID: id, Error: &body}
}
