package node

import "encoding/json"

type frameKind int

const (
	frameUnknown frameKind = iota
	frameRegisterAck
	frameHTTPReq
	frameProxyRequest
	frameControl
	frameData
	frameRPCEnvelope
)

// inboundFrame is the union of every shape a tunnel frame can take (§4.3.1,
// §6.2). Decoding into one struct and branching on which fields are
// populated mirrors the original firmware's single dynamically-keyed
// JsonDocument rather than a per-type struct.
type inboundFrame struct {
	Type string `json:"type,omitempty"`

	// register_ack
	Status    string `json:"status,omitempty"`
	Reason    string `json:"reason,omitempty"`
	NodeID    string `json:"node_id,omitempty"`
	TunnelID  string `json:"tunnel_id,omitempty"`
	TunnelURL string `json:"tunnel_url,omitempty"`

	// RPC envelope / HTTP_REQ
	ID       string            `json:"id,omitempty"`
	Path     string            `json:"path,omitempty"`
	Method   string            `json:"method,omitempty"`
	Headers  map[string]string `json:"headers,omitempty"`
	Body     json.RawMessage   `json:"body,omitempty"`
	StreamID string            `json:"stream_id,omitempty"`

	// proxy_request / proxy_response
	RequestID string `json:"request_id,omitempty"`
	Query     string `json:"query,omitempty"`

	// control
	Cmd string `json:"cmd,omitempty"`

	// data
	Direction     string `json:"direction,omitempty"`
	PayloadBase64 string `json:"payload_base64,omitempty"`
}

// parseFrame classifies a raw tunnel frame. The RPC envelope has no type
// tag at all (§4.3.1: "document contains BOTH id and path"), so presence
// detection runs against the raw key set, not the typed struct -- a typed
// field left at its zero value is indistinguishable from "absent".
func parseFrame(raw []byte) (frameKind, inboundFrame, error) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(raw, &probe); err != nil {
		return frameUnknown, inboundFrame{}, err
	}

	var f inboundFrame
	if err := json.Unmarshal(raw, &f); err != nil {
		return frameUnknown, inboundFrame{}, err
	}

	switch f.Type {
	case "register_ack":
		return frameRegisterAck, f, nil
	case "HTTP_REQ":
		return frameHTTPReq, f, nil
	case "proxy_request":
		return frameProxyRequest, f, nil
	case "control":
		return frameControl, f, nil
	case "data":
		return frameData, f, nil
	}

	_, hasID := probe["id"]
	_, hasPath := probe["path"]
	if hasID && hasPath {
		return frameRPCEnvelope, f, nil
	}
	return frameUnknown, f, nil
}

// handleInboundFrame is invoked once per drained tunnel frame during the
// ws-loop phase of Tick.
func (n *Node) handleInboundFrame(raw []byte) {
	kind, f, err := parseFrame(raw)
	if err != nil {
		n.log.Warn().Err(err).Msg("tunnel: malformed frame, ignoring")
		return
	}

	switch kind {
	case frameRegisterAck:
		n.handleRegisterAck(f)
	case frameHTTPReq, frameRPCEnvelope:
		n.handleSingleFrameRequest(kind, f)
	case frameProxyRequest:
		n.handleProxyRequest(f)
	case frameControl:
		n.handleStreamControl(f)
	case frameData:
		if f.Direction == "c2n" {
			n.handleStreamData(f)
		}
	default:
		n.log.Debug().Str("type", f.Type).Msg("tunnel: unknown frame type, ignoring")
	}
}
