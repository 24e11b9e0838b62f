package node

import "encoding/json"

// singleFrameBudget is the serialization budget for one HTTP-over-tunnel
// response frame (§4.4.1). A handler result that doesn't fit produces a
// synthetic 500 instead of silently being dropped.
const singleFrameBudget = 2048

func (n *Node) handleSingleFrameRequest(kind frameKind, f inboundFrame) {
	var corrID string
	switch kind {
	case frameHTTPReq:
		corrID = f.StreamID
		if corrID == "" {
			n.log.Warn().Msg("tunnel: HTTP_REQ missing stream_id, dropping (no response sent)")
			return
		}
	case frameRPCEnvelope:
		corrID = f.ID
	}

	req := InboundRequest{
		Method:  f.Method,
		Path:    f.Path,
		Headers: f.Headers,
		Body:    bodyBytes(f.Body),
	}
	resp := n.dispatchHandler(req)

	switch kind {
	case frameHTTPReq:
		n.sendHTTPResFrame(corrID, resp)
	case frameRPCEnvelope:
		n.sendRPCResponseFrame(corrID, resp)
	}
}

func (n *Node) handleProxyRequest(f inboundFrame) {
	var body []byte
	if f.Body != nil {
		var raw string
		if err := json.Unmarshal(f.Body, &raw); err == nil {
			if decoded, derr := base64DecodeString(raw); derr == nil {
				body = decoded
			}
		}
	}
	maxBytes := n.cfg.BodyCaps.MaxTunnelBodyBytes
	if maxBytes <= 0 {
		maxBytes = 4096
	}
	if len(body) > maxBytes {
		n.sendProxyResponseFrame(f.RequestID, InboundResponse{
			Status:  413,
			Body:    []byte(`{"ok":false,"error":"payload_too_large"}`),
			Handled: true,
		})
		return
	}

	req := InboundRequest{Method: f.Method, Path: f.Path, Headers: f.Headers, Body: body}
	resp := n.dispatchHandler(req)
	n.sendProxyResponseFrame(f.RequestID, resp)
}

// dispatchHandler runs the user handler (if registered) and falls back to
// the built-in routes from §4.4.1 when it reports not-handled.
func (n *Node) dispatchHandler(req InboundRequest) InboundResponse {
	if n.handler != nil {
		resp := n.handler(req)
		if resp.Handled {
			return resp
		}
	}
	return n.routeBuiltin(req)
}

func (n *Node) routeBuiltin(req InboundRequest) InboundResponse {
	switch req.Path {
	case "/ping", "/api/ping":
		if req.Method == "" || req.Method == "GET" {
			return InboundResponse{Status: 200, ContentType: "application/json", Body: []byte(`{"ok":true}`), Handled: true}
		}
	case "/status", "/api/status":
		if req.Method == "" || req.Method == "GET" {
			body, _ := json.Marshal(map[string]interface{}{
				"ok":        true,
				"uptime_ms": nowMs(n.clock.Now()) - n.bootMs,
				"node_id":   n.reg.NodeID,
			})
			return InboundResponse{Status: 200, ContentType: "application/json", Body: body, Handled: true}
		}
	}
	return InboundResponse{Status: 404, ContentType: "application/json", Body: []byte(`{"ok":false,"error":"not_found"}`), Handled: true}
}

func (n *Node) sendHTTPResFrame(streamID string, resp InboundResponse) {
	if n.tun == nil {
		return
	}
	frame := httpResFrame{
		Type:     "HTTP_RES",
		StreamID: streamID,
		Status:   resp.Status,
		Body:     string(resp.Body),
	}
	if frameTooLarge(frame, singleFrameBudget) {
		n.sendOverflowHTTPRes(streamID)
		return
	}
	_ = n.tun.send(frame)
}

func (n *Node) sendRPCResponseFrame(id string, resp InboundResponse) {
	if n.tun == nil {
		return
	}
	var bodyVal interface{}
	if len(resp.Body) > 0 {
		var m interface{}
		if err := json.Unmarshal(resp.Body, &m); err == nil {
			bodyVal = m
		} else {
			bodyVal = string(resp.Body)
		}
	}
	frame := rpcResponseFrame{ID: id, Status: resp.Status, Body: bodyVal}
	if encoded, err := encodeDoc(frame, singleFrameBudget); err != nil || len(encoded) == 0 {
		n.sendOverflowRPC(id)
		return
	}
	_ = n.tun.send(frame)
}

func (n *Node) sendProxyResponseFrame(requestID string, resp InboundResponse) {
	if n.tun == nil {
		return
	}
	frame := proxyResponseFrame{
		Type:       "proxy_response",
		RequestID:  requestID,
		StatusCode: resp.Status,
		Body:       base64EncodeBytes(resp.Body),
	}
	if encoded, err := encodeDoc(frame, singleFrameBudget); err != nil || len(encoded) == 0 {
		n.sendOverflowProxy(requestID)
		return
	}
	_ = n.tun.send(frame)
}

func (n *Node) sendOverflowHTTPRes(streamID string) {
	_ = n.tun.send(httpResFrame{Type: "HTTP_RES", StreamID: streamID, Status: 500, Body: `{"error":"buffer_overflow"}`})
}

func (n *Node) sendOverflowRPC(id string) {
	_ = n.tun.send(rpcResponseFrame{ID: id, Status: 500, Body: map[string]string{"error": "buffer_overflow"}})
}

func (n *Node) sendOverflowProxy(requestID string) {
	_ = n.tun.send(proxyResponseFrame{Type: "proxy_response", RequestID: requestID, StatusCode: 500, Body: base64EncodeBytes([]byte(`{"error":"buffer_overflow"}`))})
}

func frameTooLarge(v interface{}, budget int) bool {
	b, err := json.Marshal(v)
	if err != nil {
		return true
	}
	return len(b) > budget
}

func bodyBytes(raw json.RawMessage) []byte {
	if len(raw) == 0 {
		return nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return []byte(s)
	}
	return []byte(raw)
}
