package node

import (
	"encoding/base64"
	"strings"
	"testing"
)

// TestSegmentedRequestReassembly exercises scenario S4 from spec §8: a
// request split across two data frames keeps the stream open after the
// first frame and closes it once the request is complete. The tunnel
// client here is not connected, so the n2c response frame is not observed.
func TestSegmentedRequestReassembly(t *testing.T) {
	n, _ := newTestNode(t, "http://127.0.0.1:1", nil)
	n.tun = newTunnelClient("ws://unused", nil)

	raw := "GET /ping HTTP/1.1\r\nHost:x\r\nContent-Length:0\r\n\r\n"
	part1, part2 := raw[:20], raw[20:]

	n.handleStreamControl(inboundFrame{Cmd: "open_stream", StreamID: "s"})
	n.handleStreamData(inboundFrame{StreamID: "s", Direction: "c2n", PayloadBase64: base64.StdEncoding.EncodeToString([]byte(part1))})
	if n.stream.open == false || n.stream.activeStreamID != "s" {
		t.Fatalf("stream should still be open after a partial frame: %+v", n.stream)
	}
	n.handleStreamData(inboundFrame{StreamID: "s", Direction: "c2n", PayloadBase64: base64.StdEncoding.EncodeToString([]byte(part2))})

	if n.stream.open {
		t.Fatal("stream should be closed after a complete request")
	}
}

func TestAccumulatorOverflowDiscardsStream(t *testing.T) {
	n, _ := newTestNode(t, "http://127.0.0.1:1", nil)
	n.tun = newTunnelClient("ws://unused", nil)
	n.handleStreamControl(inboundFrame{Cmd: "open_stream", StreamID: "s"})

	huge := make([]byte, streamAccumulatorCap+1)
	n.handleStreamData(inboundFrame{StreamID: "s", Direction: "c2n", PayloadBase64: base64.StdEncoding.EncodeToString(huge)})

	if n.stream.open {
		t.Fatal("stream should be discarded on overflow")
	}
}

func TestContentLengthHeaderRequiresExactCase(t *testing.T) {
	got, ok := parseContentLengthHeader([]string{"content-length: 5"})
	if ok {
		t.Fatalf("lowercase content-length should not match, got %d", got)
	}
	got, ok = parseContentLengthHeader([]string{"Content-Length: 5"})
	if !ok || got != 5 {
		t.Fatalf("exact-case header: got (%d, %v)", got, ok)
	}
}

func TestBuildRawHTTPResponseHasStatusLineAndBody(t *testing.T) {
	resp := InboundResponse{Status: 200, Body: []byte(`{"ok":true}`)}
	raw := string(buildRawHTTPResponse(resp))
	if !strings.HasPrefix(raw, "HTTP/1.1 200 OK\r\n") {
		t.Fatalf("unexpected status line: %q", raw)
	}
	if !strings.Contains(raw, `{"ok":true}`) {
		t.Fatalf("missing body: %q", raw)
	}
}
