package node

import (
	"strings"
	"time"
)

// tryPendingAction dispatches the two different exchanges that share the
// PendingPoll state (§4.1: bookkeeping note on pendingMode) -- self-approve
// submission when a pairing code is on file, otherwise a plain session poll.
func (n *Node) tryPendingAction(now time.Time) bool {
	if n.pendingMode == pendingModeSelfApprove {
		return n.tryApprove(now)
	}
	return n.trySessionPoll(now)
}

// tryApprove implements §4.1.3.
func (n *Node) tryApprove(now time.Time) bool {
	if n.approveMissingMacLatch {
		return false
	}
	if nowMs(now) < n.nextApproveActionMs {
		return false
	}

	req := approveRequest{
		SlotID:      n.cfg.SlotID,
		PairingCode: n.pairing.Code,
		MAC:         n.identity.MAC,
		MachineID:   n.identity.MachineID,
		Firmware:    n.cfg.FirmwareVersion,
	}
	status, doc, err := n.controlPost(n.cfg.Endpoints.Approve, "", req, n.cfg.BodyCaps.PairResponseBytes)
	if err != nil {
		n.netBackoff.advance()
		n.nextApproveActionMs = nowMs(now) + n.approveRetryMs()
		n.setLastError("approve: " + err.Error())
		return true
	}

	if status == 400 && strings.Contains(docString(doc, "error", "message", "reason"), "missing_mac") {
		n.approveMissingMacLatch = true
		n.setLastError("approve: missing_mac, giving up for this process lifetime")
		return true
	}
	if isAuthFailure(status) {
		n.sess.clear()
		n.pairing.clear()
		n.netBackoff.advance()
		n.setLastError("approve: session invalid")
		n.setState(StateHello)
		n.nextHelloMs = nowMs(now) + n.netBackoff.current()
		return true
	}
	if status < 200 || status >= 300 {
		n.nextApproveActionMs = nowMs(now) + n.approveRetryMs()
		n.setLastError("approve: unexpected status")
		return true
	}

	n.applyGrantedTokens(doc, "node_id", "canonical_node_id")
	n.pairing.clear()
	n.promoteToActive(now)
	return true
}

func (n *Node) approveRetryMs() int64 {
	if n.cfg.Intervals.RegisterRetry > 0 {
		return n.cfg.Intervals.RegisterRetry.Milliseconds()
	}
	return 2000
}
