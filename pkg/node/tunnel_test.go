package node

import (
	"testing"
	"time"
)

func TestHandleRegisterAckOkPromotesToTunnelConnected(t *testing.T) {
	n, _ := newTestNode(t, "http://127.0.0.1:1", nil)
	n.tun = newTunnelClient("ws://unused", nil)
	n.tunState.sub = tunnelConnecting
	n.setState(StateTunnelConnecting)

	n.handleRegisterAck(inboundFrame{Status: "ok", NodeID: "n1", TunnelID: "t1"})

	if n.state != StateTunnelConnected {
		t.Fatalf("state: got %v, want TunnelConnected", n.state)
	}
	if n.tunState.sub != tunnelOpenRegistered {
		t.Fatalf("tunnel sub-state: got %v", n.tunState.sub)
	}
	if n.reg.NodeID != "n1" || n.reg.TunnelID != "t1" {
		t.Fatalf("registered node not updated: %+v", n.reg)
	}
}

func TestHandleRegisterAckMissingAuthTokenClearsSession(t *testing.T) {
	n, clock := newTestNode(t, "http://127.0.0.1:1", nil)
	n.tun = newTunnelClient("ws://unused", nil)
	n.sess.SessionToken = "will-be-cleared"

	n.handleRegisterAck(inboundFrame{Status: "error", Reason: "MISSING_AUTH_TOKEN"})

	if n.sess.valid() {
		t.Fatal("expected session token to be cleared")
	}
	if n.nextApproveActionMs != nowMs(clock.now) {
		t.Fatalf("expected an immediate approve reschedule, got %d", n.nextApproveActionMs)
	}
	if !n.tunState.disconnectPending {
		t.Fatal("expected disconnect_pending to be set")
	}
}

func TestHandleRegisterAckUnknownReasonUsesCurrentBackoff(t *testing.T) {
	n, clock := newTestNode(t, "http://127.0.0.1:1", nil)
	n.tun = newTunnelClient("ws://unused", nil)
	before := n.tunnelBackoff.current()

	n.handleRegisterAck(inboundFrame{Status: "error", Reason: "SOMETHING_NEW"})

	if n.tunnelBackoff.current() != before {
		t.Fatalf("backoff should not have advanced: got %d, want %d", n.tunnelBackoff.current(), before)
	}
	if n.nextTunnelConnectMs != nowMs(clock.now)+before {
		t.Fatalf("reconnect scheduled at wrong time: got %d", n.nextTunnelConnectMs)
	}
}

func TestTeardownTunnelIfPendingClearsState(t *testing.T) {
	n, now := newTestNode(t, "http://127.0.0.1:1", nil)
	n.tun = newTunnelClient("ws://unused", nil)
	n.tunState = tunnelLifecycle{sub: tunnelOpenRegistered, disconnectPending: true}
	n.setState(StateTunnelConnected)

	fired := false
	n.observers.OnTunnelChange = func(connected bool) {
		if connected {
			t.Fatal("expected a tunnel-down observer call")
		}
		fired = true
	}

	n.teardownTunnelIfPending(now.now)

	if n.tun != nil {
		t.Fatal("expected tunnel client to be nil after teardown")
	}
	if n.state != StateActive {
		t.Fatalf("state: got %v, want Active", n.state)
	}
	if !fired {
		t.Fatal("expected OnTunnelChange to fire")
	}
}

func TestNoActionScheduledSentinelNeverDue(t *testing.T) {
	future := time.Unix(1<<40, 0)
	if nowMs(future) >= noActionScheduled {
		t.Fatal("sentinel should never be reached by a realistic clock value")
	}
}
