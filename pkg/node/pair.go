package node

import "time"

// tryPairSubmit implements §4.1.2: manual pairing-code submission, used
// when self-approve is disabled.
func (n *Node) tryPairSubmit(now time.Time) bool {
	if nowMs(now) < n.nextPairMs {
		return false
	}

	req := pairRequest{
		SlotID:      n.cfg.SlotID,
		PairingCode: n.pairing.Code,
		Firmware:    n.cfg.FirmwareVersion,
		DeviceInfo:  deviceInfo{MAC: n.identity.MAC, Platform: n.hw.Platform},
	}
	status, doc, err := n.controlPost(n.cfg.Endpoints.Pair, "", req, n.cfg.BodyCaps.PairResponseBytes)
	if err != nil || status < 200 || status >= 300 || !docBool(doc, "ok") {
		n.pairing.clear()
		n.pairBackoff.advance()
		n.setLastError("pair: submission failed")
		n.setState(StateHello)
		n.nextHelloMs = nowMs(now) + n.pairBackoff.current()
		return true
	}

	n.pairBackoff.reset()
	n.applyGrantedTokens(doc, "node_id", "canonical_node_id", "resolved_node_id")
	n.pairing.clear()
	n.promoteToActive(now)
	return true
}

// applyGrantedTokens copies the common token/tunnel fields the pair,
// approve, session-poll, and register-by-slot responses all share, using
// whichever of nodeIDKeys is present first, per spec §6.1's alias columns.
func (n *Node) applyGrantedTokens(doc map[string]interface{}, nodeIDKeys ...string) {
	if id := docString(doc, nodeIDKeys...); id != "" {
		n.reg.NodeID = id
	}
	if tok := docString(doc, "session_token"); tok != "" {
		n.sess.SessionToken = tok
	}
	if tok := docString(doc, "node_token", "register_token"); tok != "" {
		n.reg.NodeAuthToken = tok
	}
	if ttl, ok := docInt(doc, "ttl_seconds"); ok {
		n.sess.ExpiresAtMs = nowMs(n.clock.Now()) + int64(ttl)*1000
	}
	if exp := docString(doc, "expires_at", "session_expires_at"); exp != "" {
		n.sess.ExpiresAtWallString = exp
	}
	if url := docString(doc, "tunnel_url"); url != "" {
		n.reg.TunnelURL = url
	} else if n.reg.TunnelURL == "" {
		if hub, err := n.cfg.parsedHub(); err == nil {
			n.reg.TunnelURL = hub.defaultTunnelURL()
		}
	}
	n.everRegistered = true
	n.isRegistered = true
}

func (n *Node) promoteToActive(now time.Time) {
	n.setState(StateGranted)
	n.setState(StateActive)
	if n.observers.OnRegistered != nil && n.reg.NodeID != "" {
		n.observers.OnRegistered(n.reg.NodeID)
	}
	n.nextHeartbeatMs = nowMs(now) + n.cfg.Intervals.Heartbeat.Milliseconds()
	if n.cfg.Features.EnableCommandPolling {
		n.nextCommandPollMs = nowMs(now) + n.commandPollInterval().Milliseconds()
	}
	n.nextTunnelConnectMs = nowMs(now)
}

func (n *Node) commandPollInterval() time.Duration {
	if n.cfg.Intervals.CommandPoll > 0 {
		return n.cfg.Intervals.CommandPoll
	}
	return n.cfg.Intervals.Heartbeat
}
