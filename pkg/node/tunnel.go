package node

import (
	"encoding/base64"
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const noActionScheduled = int64(math.MaxInt64)

var tunnelBackoffSteps = []int64{2000, 4000, 8000, 15000, 60000}

type tunnelSubState int

const (
	tunnelIdle tunnelSubState = iota
	tunnelConnecting
	tunnelOpenUnregistered
	tunnelOpenRegistered
	tunnelTearingDown
)

// tunnelLifecycle is the TunnelState entity from spec §3. disconnectPending
// exists specifically so teardown happens from Tick, never from inside the
// websocket library's read-loop goroutine -- see tunnelClient.readPump.
type tunnelLifecycle struct {
	sub                tunnelSubState
	registerFrameAcked bool
	lastPingSentMs      int64
	disconnectPending  bool
}

type tunnelEventKind int

const (
	tunnelEventConnected tunnelEventKind = iota
	tunnelEventDisconnected
	tunnelEventErrorEvt
)

type tunnelEvt struct {
	kind tunnelEventKind
	err  error
}

// tunnelClient owns exactly one websocket connection. Its dial goroutine
// and read pump are the only goroutines this package ever starts on its
// own; they never touch Node state directly, only push onto buffered
// channels that Tick drains.
type tunnelClient struct {
	url    string
	header http.Header
	conn   *websocket.Conn
	events chan tunnelEvt
	frames chan []byte
}

func newTunnelClient(url string, header http.Header) *tunnelClient {
	return &tunnelClient{
		url:    url,
		header: header,
		events: make(chan tunnelEvt, 4),
		frames: make(chan []byte, 64),
	}
}

func (t *tunnelClient) connectAsync() {
	go func() {
		conn, _, err := websocket.DefaultDialer.Dial(t.url, t.header)
		if err != nil {
			t.events <- tunnelEvt{kind: tunnelEventErrorEvt, err: err}
			return
		}
		t.conn = conn
		t.events <- tunnelEvt{kind: tunnelEventConnected}
		go t.readPump()
	}()
}

func (t *tunnelClient) readPump() {
	for {
		_, data, err := t.conn.ReadMessage()
		if err != nil {
			t.events <- tunnelEvt{kind: tunnelEventDisconnected, err: err}
			return
		}
		select {
		case t.frames <- data:
		default:
			// Inbox full: drop the frame rather than block the read pump.
		}
	}
}

func (t *tunnelClient) send(v interface{}) error {
	if t.conn == nil {
		return fmt.Errorf("tunnel: not connected")
	}
	return t.conn.WriteJSON(v)
}

func (t *tunnelClient) close() {
	if t.conn != nil {
		_ = t.conn.Close()
	}
}

func nowMs(t time.Time) int64 {
	return t.UnixMilli()
}

// maybeStartTunnelConnect implements the idle -> connecting transition
// from spec §4.3: due, enabled, identity ready, and a bearer credential
// present.
func (n *Node) maybeStartTunnelConnect(now time.Time) {
	if !n.cfg.Features.EnableTunnel || n.tun != nil {
		return
	}
	if nowMs(now) < n.nextTunnelConnectMs {
		return
	}
	if !n.identityReady {
		return
	}
	tunnelURL := n.reg.TunnelURL
	if tunnelURL == "" {
		hub, err := n.cfg.parsedHub()
		if err != nil {
			return
		}
		tunnelURL = hub.defaultTunnelURL()
	}
	if n.reg.NodeAuthToken == "" && n.sess.SessionToken == "" {
		return
	}

	header := http.Header{}
	if n.sess.SessionToken != "" {
		header.Set("Authorization", "Bearer "+n.sess.SessionToken)
	}
	n.tun = newTunnelClient(tunnelURL, header)
	n.tunState = tunnelLifecycle{sub: tunnelConnecting}
	n.tun.connectAsync()
	n.setState(StateTunnelConnecting)
	n.log.Debug().Str("url", tunnelURL).Msg("tunnel: dialing")
}

// drainTunnel processes every event and frame queued since the last tick,
// bounded per call so a misbehaving peer can't turn Tick unbounded.
func (n *Node) drainTunnel(now time.Time) {
	if n.tun == nil {
		return
	}
	for i := 0; i < 64; i++ {
		select {
		case ev := <-n.tun.events:
			n.handleTunnelEvent(ev, now)
		default:
			i = 64
		}
	}
	for i := 0; i < 64; i++ {
		select {
		case raw := <-n.tun.frames:
			if n.observers.OnTunnelMessage != nil {
				n.observers.OnTunnelMessage(raw)
			}
			n.handleInboundFrame(raw)
		default:
			return
		}
	}
}

func (n *Node) handleTunnelEvent(ev tunnelEvt, now time.Time) {
	switch ev.kind {
	case tunnelEventConnected:
		n.tunState.sub = tunnelOpenUnregistered
		if n.sess.SessionToken == "" {
			n.log.Warn().Msg("tunnel: connected without a session token, skipping register")
			n.tunState.disconnectPending = true
			n.nextTunnelConnectMs = nowMs(now) + 3000
			n.nextApproveActionMs = nowMs(now)
			return
		}
		frame := registerFrame{
			Type:      "register",
			NodeID:    n.reg.NodeID,
			SlotID:    n.cfg.SlotID,
			MachineID: n.identity.MachineID,
			MAC:       n.identity.MAC,
			Firmware:  n.cfg.FirmwareVersion,
			AuthToken: n.sess.SessionToken,
		}
		if err := n.tun.send(frame); err != nil {
			n.log.Warn().Err(err).Msg("tunnel: register frame send failed")
			n.tunState.disconnectPending = true
			delta := n.tunnelBackoff.advance()
			n.nextTunnelConnectMs = nowMs(now) + delta
		}
	case tunnelEventDisconnected, tunnelEventErrorEvt:
		n.tunState.disconnectPending = true
		delta := n.tunnelBackoff.advance()
		n.nextTunnelConnectMs = nowMs(now) + delta
		n.log.Debug().Err(ev.err).Int64("backoff_ms", delta).Msg("tunnel: disconnected")
	}
}

// teardownTunnelIfPending is phase 2 of Tick: deferred destruction, run
// only from the main tick path, never from the websocket callback.
func (n *Node) teardownTunnelIfPending(now time.Time) {
	if n.tun == nil || !n.tunState.disconnectPending {
		return
	}
	n.tun.close()
	n.tun = nil
	wasConnected := n.tunState.sub == tunnelOpenRegistered
	n.tunState = tunnelLifecycle{}
	if n.state == StateTunnelConnected || n.state == StateTunnelConnecting {
		n.setState(StateActive)
	}
	if wasConnected && n.observers.OnTunnelChange != nil {
		n.observers.OnTunnelChange(false)
	}
}

func (n *Node) handleRegisterAck(f inboundFrame) {
	if n.tun == nil {
		return
	}
	if f.Status == "ok" {
		n.tunState.sub = tunnelOpenRegistered
		n.tunState.registerFrameAcked = true
		n.tunnelBackoff.reset()
		if f.NodeID != "" {
			n.reg.NodeID = f.NodeID
		}
		if f.TunnelID != "" {
			n.reg.TunnelID = f.TunnelID
		}
		if f.TunnelURL != "" {
			n.reg.TunnelURL = f.TunnelURL
		}
		n.setState(StateTunnelConnected)
		if n.observers.OnTunnelChange != nil {
			n.observers.OnTunnelChange(true)
		}
		return
	}
	if f.Status == "error" {
		switch f.Reason {
		case "MISSING_AUTH_TOKEN":
			n.sess.clear()
			n.nextApproveActionMs = nowMs(n.clock.Now())
		case "SLOT_ID_MISMATCH":
			// Operator action needed; leave the approve schedule alone.
		case "SESSION_TOKEN_MISSING_SLOT_ID":
			n.nextApproveActionMs = noActionScheduled
		}
		n.tunState.disconnectPending = true
		n.nextTunnelConnectMs = nowMs(n.clock.Now()) + n.tunnelBackoff.current()
		n.log.Warn().Str("reason", f.Reason).Msg("tunnel: register refused")
	}
}

// fireKeepaliveIfDue is phase 6 of Tick: a ping every 25s while registered.
func (n *Node) fireKeepaliveIfDue(now time.Time) {
	if n.tun == nil || n.tunState.sub != tunnelOpenRegistered {
		return
	}
	if nowMs(now)-n.tunState.lastPingSentMs < 25000 {
		return
	}
	if err := n.tun.send(pingFrame{Type: "ping"}); err != nil {
		n.log.Warn().Err(err).Msg("tunnel: ping send failed")
		n.tunState.disconnectPending = true
		return
	}
	n.tunState.lastPingSentMs = nowMs(now)
}

func base64EncodeBytes(b []byte) string {
	return base64.StdEncoding.EncodeToString(b)
}

func base64DecodeString(s string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(s)
}
