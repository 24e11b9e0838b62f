package node

import (
	"fmt"
	"strconv"
	"strings"
)

const streamAccumulatorCap = 4096

// streamContext is the StreamContext entity from spec §3: at most one
// concurrent inbound HTTP stream. Opening a second stream while one is
// active preempts the prior accumulator.
type streamContext struct {
	activeStreamID string
	open           bool
	accumulator    []byte
}

func (n *Node) handleStreamControl(f inboundFrame) {
	switch f.Cmd {
	case "open_stream":
		n.stream = streamContext{activeStreamID: f.StreamID, open: true}
	case "close_stream":
		if n.stream.activeStreamID == f.StreamID {
			n.stream = streamContext{}
		}
	}
}

func (n *Node) handleStreamData(f inboundFrame) {
	if !n.stream.open || n.stream.activeStreamID != f.StreamID {
		return
	}
	chunk, err := base64DecodeString(f.PayloadBase64)
	if err != nil {
		n.log.Warn().Err(err).Str("stream_id", f.StreamID).Msg("tunnel: malformed data frame payload")
		return
	}
	n.stream.accumulator = append(n.stream.accumulator, chunk...)
	if len(n.stream.accumulator) > streamAccumulatorCap {
		n.sendStreamOverflow(f.StreamID)
		n.stream = streamContext{}
		return
	}
	n.tryParseStream(f.StreamID)
}

func (n *Node) tryParseStream(streamID string) {
	buf := n.stream.accumulator
	idx := strings.Index(string(buf), "\r\n\r\n")
	if idx < 0 {
		return
	}
	headerBlock := string(buf[:idx])
	bodyBytesAvail := len(buf) - (idx + 4)

	lines := strings.Split(headerBlock, "\r\n")
	if len(lines) == 0 {
		return
	}
	parts := strings.Fields(lines[0])
	if len(parts) < 2 {
		return
	}
	method, path := parts[0], parts[1]

	contentLength, ok := parseContentLengthHeader(lines[1:])
	if !ok {
		contentLength = 0
	}
	if contentLength > bodyBytesAvail {
		return // wait for more data frames
	}

	body := buf[idx+4 : idx+4+contentLength]
	req := InboundRequest{Method: method, Path: path, Body: body}
	resp := n.dispatchHandler(req)

	raw := buildRawHTTPResponse(resp)
	n.sendStreamResponse(streamID, raw)
	n.stream = streamContext{}
}

// parseContentLengthHeader deliberately matches only the exact-case
// "Content-Length:" prefix per spec §4.4.2 -- HTTP headers are
// case-insensitive in general, and this is a known, intentional deviation
// carried over from the original firmware (see DESIGN.md).
func parseContentLengthHeader(headerLines []string) (int, bool) {
	for _, line := range headerLines {
		if strings.HasPrefix(line, "Content-Length:") {
			v := strings.TrimSpace(strings.TrimPrefix(line, "Content-Length:"))
			n, err := strconv.Atoi(v)
			if err == nil {
				return n, true
			}
		}
	}
	return 0, false
}

func buildRawHTTPResponse(resp InboundResponse) []byte {
	statusText := httpStatusText(resp.Status)
	contentType := resp.ContentType
	if contentType == "" {
		contentType = "application/json"
	}
	head := fmt.Sprintf("HTTP/1.1 %d %s\r\nContent-Type: %s\r\nContent-Length: %d\r\n\r\n",
		resp.Status, statusText, contentType, len(resp.Body))
	return append([]byte(head), resp.Body...)
}

func httpStatusText(status int) string {
	switch status {
	case 200:
		return "OK"
	case 404:
		return "Not Found"
	case 413:
		return "Payload Too Large"
	case 500:
		return "Internal Server Error"
	default:
		return "Unknown"
	}
}

func (n *Node) sendStreamResponse(streamID string, raw []byte) {
	if n.tun == nil {
		return
	}
	_ = n.tun.send(dataFrame{
		Type:          "data",
		StreamID:      streamID,
		Direction:     "n2c",
		PayloadBase64: base64EncodeBytes(raw),
	})
}

func (n *Node) sendStreamOverflow(streamID string) {
	resp := InboundResponse{Status: 413, Body: []byte(`{"ok":false,"error":"payload_too_large"}`)}
	n.sendStreamResponse(streamID, buildRawHTTPResponse(resp))
}
