package node

import "testing"

func TestRouteBuiltinPing(t *testing.T) {
	n, _ := newTestNode(t, "http://127.0.0.1:1", nil)
	resp := n.routeBuiltin(InboundRequest{Method: "GET", Path: "/ping"})
	if resp.Status != 200 {
		t.Fatalf("status: got %d, want 200", resp.Status)
	}
	if string(resp.Body) != `{"ok":true}` {
		t.Fatalf("body: got %s", resp.Body)
	}
}

func TestRouteBuiltinUnknownPathIs404(t *testing.T) {
	n, _ := newTestNode(t, "http://127.0.0.1:1", nil)
	resp := n.routeBuiltin(InboundRequest{Method: "GET", Path: "/nope"})
	if resp.Status != 404 {
		t.Fatalf("status: got %d, want 404", resp.Status)
	}
}

func TestDispatchHandlerFallsThroughWhenNotHandled(t *testing.T) {
	n, _ := newTestNode(t, "http://127.0.0.1:1", nil)
	n.handler = func(req InboundRequest) InboundResponse {
		return InboundResponse{Handled: false}
	}
	resp := n.dispatchHandler(InboundRequest{Method: "GET", Path: "/ping"})
	if resp.Status != 200 {
		t.Fatalf("expected fallback to builtin /ping, got status %d", resp.Status)
	}
}

func TestDispatchHandlerHonorsHandledResponse(t *testing.T) {
	n, _ := newTestNode(t, "http://127.0.0.1:1", nil)
	n.handler = func(req InboundRequest) InboundResponse {
		return InboundResponse{Status: 201, Body: []byte("custom"), Handled: true}
	}
	resp := n.dispatchHandler(InboundRequest{Method: "GET", Path: "/anything"})
	if resp.Status != 201 || string(resp.Body) != "custom" {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestHandleProxyRequestOversizeBodyIsRejected(t *testing.T) {
	n, _ := newTestNode(t, "http://127.0.0.1:1", func(c *NodeConfig) {
		c.BodyCaps.MaxTunnelBodyBytes = 4
	})
	n.tun = newTunnelClient("ws://unused", nil)
	n.handler = func(req InboundRequest) InboundResponse {
		t.Fatal("handler should not run for an oversize body")
		return InboundResponse{}
	}
	n.handleProxyRequest(inboundFrame{RequestID: "req-1", Method: "POST", Path: "/x", Body: quotedBase64(8)})
}

func quotedBase64(n int) []byte {
	encoded := base64EncodeBytes(make([]byte, n))
	return []byte(`"` + encoded + `"`)
}
