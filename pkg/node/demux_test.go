package node

import "testing"

func TestParseFrameDetectsRPCEnvelopeByKeySet(t *testing.T) {
	kind, f, err := parseFrame([]byte(`{"id":"r1","path":"/ping"}`))
	if err != nil {
		t.Fatalf("parseFrame: %v", err)
	}
	if kind != frameRPCEnvelope {
		t.Fatalf("kind: got %v, want frameRPCEnvelope", kind)
	}
	if f.ID != "r1" || f.Path != "/ping" {
		t.Fatalf("fields: got %+v", f)
	}
}

func TestParseFrameDispatchesByTypeTag(t *testing.T) {
	cases := map[string]frameKind{
		`{"type":"register_ack","status":"ok"}`:  frameRegisterAck,
		`{"type":"HTTP_REQ","stream_id":"s"}`:     frameHTTPReq,
		`{"type":"proxy_request","request_id":"r"}`: frameProxyRequest,
		`{"type":"control","cmd":"open_stream"}`:  frameControl,
		`{"type":"data","direction":"c2n"}`:       frameData,
		`{"type":"something_else"}`:               frameUnknown,
	}
	for raw, want := range cases {
		kind, _, err := parseFrame([]byte(raw))
		if err != nil {
			t.Fatalf("parseFrame(%s): %v", raw, err)
		}
		if kind != want {
			t.Errorf("parseFrame(%s): got %v, want %v", raw, kind, want)
		}
	}
}

func TestParseFrameRejectsMalformedJSON(t *testing.T) {
	if _, _, err := parseFrame([]byte(`not json`)); err == nil {
		t.Fatal("expected error for malformed frame")
	}
}
