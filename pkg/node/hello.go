package node

import "time"

// tryHello fires the §4.1.1 exchange when due. It returns whether a
// request was actually sent, so callers that treat "one action per tick"
// as "stop trying further branches" can short-circuit correctly.
func (n *Node) tryHello(now time.Time) bool {
	if nowMs(now) < n.nextHelloMs {
		return false
	}

	nonce, err := randomNonce()
	if err != nil {
		n.setLastError("hello: nonce generation failed: " + err.Error())
		return false
	}

	req := helloRequest{
		SlotID:           n.cfg.SlotID,
		Nonce:            nonce,
		Firmware:         n.cfg.FirmwareVersion,
		CapabilitiesHash: capabilitiesHash(n.cfg.Capabilities),
		DeviceInfo:       deviceInfo{MAC: n.identity.MAC, Platform: n.hw.Platform},
	}
	if n.cfg.Features.SendReconnectHintInHello && n.everRegistered {
		req.Reconnect = true
		req.BootReason = string(BootManualReconnect)
	}

	status, doc, err := n.controlPost(n.cfg.Endpoints.Hello, "", req, n.cfg.BodyCaps.DefaultResponseBytes)
	if err != nil {
		n.netBackoff.advance()
		n.nextHelloMs = nowMs(now) + n.netBackoff.current()
		n.setLastError("hello: " + err.Error())
		return true
	}

	switch status {
	case 401:
		n.netBackoff.advance()
		n.nextHelloMs = nowMs(now) + n.netBackoff.current()
		n.setLastError("hello: unauthorized")
		return true
	case 403:
		n.netBackoff.advance()
		n.nextHelloMs = nowMs(now) + n.netBackoff.current()
		n.setLastError("hello: forbidden")
		return true
	case 410:
		n.pairing.clear()
		n.sess.clear()
		n.netBackoff.advance()
		n.nextHelloMs = nowMs(now) + n.netBackoff.current()
		n.setLastError("hello: pairing gone")
		return true
	}
	if status < 200 || status >= 300 {
		n.netBackoff.advance()
		n.nextHelloMs = nowMs(now) + n.netBackoff.current()
		n.setLastError("hello: unexpected status")
		return true
	}

	n.netBackoff.reset()
	hubStatus := docString(doc, "status")
	retryAfter, ok := docInt(doc, "retry_after_ms")
	if !ok {
		retryAfter = 3000
	}
	n.nextHelloMs = nowMs(now) + int64(retryAfter)

	switch hubStatus {
	case "DENIED":
		n.setLastError("hello: denied")
		n.setState(StateError)
		n.nextHelloMs = nowMs(now) + n.netBackoff.advance()
		return true
	case "PENDING", "APPROVED":
		code := docString(doc, "pairing_code", "pairing", "code")
		expiresAt := docString(doc, "pairing_expires_at", "expires_at")
		if code != "" {
			n.pairing = PairingMaterial{Code: code, ExpiresAt: expiresAt, Valid: true}
		}
		n.chooseBranchAfterHello()
		return true
	default:
		n.setLastError("hello: unrecognized status " + hubStatus)
		return true
	}
}

// chooseBranchAfterHello implements the Hello->{PairSubmit,PendingPoll}
// split from spec §4.1: a pairing code with self-approve disabled goes to
// manual pair submission; everything else (pairing with self-approve
// enabled, or PENDING/APPROVED with no pairing at all) lands in PendingPoll.
func (n *Node) chooseBranchAfterHello() {
	if n.pairing.Valid && !n.cfg.Features.EnableSelfApprove {
		n.setState(StatePairSubmit)
		n.nextPairMs = n.nextHelloMs
		return
	}
	n.setState(StatePendingPoll)
	if n.pairing.Valid {
		n.pendingMode = pendingModeSelfApprove
		n.nextApproveActionMs = n.nextHelloMs
	} else {
		n.pendingMode = pendingModeSessionPoll
		n.nextPendingActionMs = n.nextHelloMs
	}
}
