package node

import "time"

// tryHeartbeat implements §4.1.6. It fires while the session is valid in
// any of the three authed run states, independent of tunnel sub-state.
func (n *Node) tryHeartbeat(now time.Time) bool {
	if !n.isAuthedRunState() || !n.sess.valid() {
		return false
	}
	if nowMs(now) < n.nextHeartbeatMs {
		return false
	}

	if exp, ok := diagnosticTokenExpiry(n.sess.SessionToken); ok && exp.Before(now) {
		n.log.Warn().Time("exp", exp).Msg("heartbeat: session token looks expired, relying on the hub's 401 to confirm")
	}

	nonce, err := randomNonce()
	if err != nil {
		n.setLastError("heartbeat: nonce generation failed: " + err.Error())
		return false
	}
	req := heartbeatRequest{
		SlotID:           n.cfg.SlotID,
		Nonce:            nonce,
		Firmware:         n.cfg.FirmwareVersion,
		UptimeMs:         nowMs(now) - n.bootMs,
		RSSI:             0,
		FreeHeap:         0,
		CapabilitiesHash: capabilitiesHash(n.cfg.Capabilities),
		LEDState:         n.ledState,
	}
	status, doc, err := n.controlPost(n.cfg.Endpoints.Heartbeat, n.sess.SessionToken, req, n.cfg.BodyCaps.DefaultResponseBytes)
	n.nextHeartbeatMs = nowMs(now) + n.cfg.Intervals.Heartbeat.Milliseconds()
	if err != nil {
		n.setLastError("heartbeat: " + err.Error())
		return true
	}
	if isAuthFailure(status) {
		n.invalidateSession(now, "heartbeat: session invalid")
		return true
	}
	if ttl, ok := docInt(doc, "ttl_seconds"); ok {
		n.sess.ExpiresAtMs = nowMs(now) + int64(ttl)*1000
	}
	return true
}

// invalidateSession is the common §7 "Authentication" error path: clear
// the session, return to Hello, and advance the net backoff.
func (n *Node) invalidateSession(now time.Time, reason string) {
	n.sess.clear()
	n.netBackoff.advance()
	n.setLastError(reason)
	n.setState(StateHello)
	n.nextHelloMs = nowMs(now) + n.netBackoff.current()
}
