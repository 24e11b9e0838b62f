package node

import "time"

// trySessionPoll implements §4.1.4.
func (n *Node) trySessionPoll(now time.Time) bool {
	if nowMs(now) < n.nextPendingActionMs {
		return false
	}

	nonce, err := randomNonce()
	if err != nil {
		n.setLastError("session poll: nonce generation failed: " + err.Error())
		return false
	}
	req := sessionPollRequest{SlotID: n.cfg.SlotID, Nonce: nonce}
	status, doc, err := n.controlPost(n.cfg.Endpoints.Session, "", req, n.cfg.BodyCaps.DefaultResponseBytes)
	if err != nil {
		n.nextPendingActionMs = nowMs(now) + 3000
		n.setLastError("session poll: " + err.Error())
		return true
	}
	if isAuthFailure(status) {
		n.sess.clear()
		n.pairing.clear()
		n.netBackoff.advance()
		n.setLastError("session poll: session invalid")
		n.setState(StateHello)
		n.nextHelloMs = nowMs(now) + n.netBackoff.current()
		return true
	}

	hubStatus := docString(doc, "status")
	retryAfter, ok := docInt(doc, "retry_after_ms")
	if !ok {
		retryAfter = 3000
	}
	switch hubStatus {
	case "GRANTED":
		n.applyGrantedTokens(doc, "node_id", "canonical_node_id")
		n.promoteToActive(now)
	case "PENDING":
		n.nextPendingActionMs = nowMs(now) + int64(retryAfter)
	case "DENIED":
		n.setLastError("session poll: denied")
		n.setState(StateError)
		n.nextHelloMs = nowMs(now) + n.netBackoff.advance()
	default:
		n.nextPendingActionMs = nowMs(now) + int64(retryAfter)
	}
	return true
}

// trySessionRefresh is the Boot->Active shortcut from spec §4.1: when a
// prior session token is already in hand (e.g. the host process restarted
// but kept a reference to the same Node, or a handler injected a token via
// an application-level cache outside this package), attempt a refresh
// before falling into Hello. It returns true only if the refresh succeeded
// and the node is now Active; on any failure it clears the session and
// returns false.
func (n *Node) trySessionRefresh(now time.Time) bool {
	req := sessionRefreshRequest{SlotID: n.cfg.SlotID, SessionToken: n.sess.SessionToken}
	status, doc, err := n.controlPost(n.cfg.Endpoints.Session, n.sess.SessionToken, req, n.cfg.BodyCaps.DefaultResponseBytes)
	if err != nil {
		n.sess.clear()
		return false
	}
	if isAuthFailure(status) {
		n.sess.clear()
		return false
	}
	if docString(doc, "status") != "GRANTED" {
		n.sess.clear()
		return false
	}
	n.applyGrantedTokens(doc, "node_id", "canonical_node_id")
	n.promoteToActive(now)
	return true
}
