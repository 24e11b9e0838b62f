package node

import "time"

// tryCommandPoll implements §4.1.7: a pull followed by one ack per
// returned command, all as a single tick action. An ack failure is
// logged but does not abort the remaining acks.
func (n *Node) tryCommandPoll(now time.Time) bool {
	if !n.cfg.Features.EnableCommandPolling || !n.isAuthedRunState() || !n.sess.valid() {
		return false
	}
	if nowMs(now) < n.nextCommandPollMs {
		return false
	}

	nonce, err := randomNonce()
	if err != nil {
		n.setLastError("commands: nonce generation failed: " + err.Error())
		return false
	}
	req := commandsPullRequest{SlotID: n.cfg.SlotID, Nonce: nonce}
	status, doc, err := n.controlPost(n.cfg.Endpoints.CommandsPull, n.sess.SessionToken, req, n.cfg.BodyCaps.DefaultResponseBytes)
	n.nextCommandPollMs = nowMs(now) + n.commandPollInterval().Milliseconds()
	if err != nil {
		n.setLastError("commands: pull failed: " + err.Error())
		return true
	}
	if isAuthFailure(status) {
		n.invalidateSession(now, "commands: session invalid")
		return true
	}

	for _, item := range docSlice(doc, "commands") {
		cmd, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		id := docString(cmd, "id")
		if id == "" {
			continue
		}
		n.ackCommand(id)
	}
	return true
}

func (n *Node) ackCommand(commandID string) {
	nonce, err := randomNonce()
	if err != nil {
		n.setLastError("commands: ack nonce generation failed: " + err.Error())
		return
	}
	req := commandsAckRequest{SlotID: n.cfg.SlotID, CommandID: commandID, Nonce: nonce, Status: "handled"}
	if _, _, err := n.controlPost(n.cfg.Endpoints.CommandsAck, n.sess.SessionToken, req, n.cfg.BodyCaps.DefaultResponseBytes); err != nil {
		n.setLastError("commands: ack " + commandID + " failed: " + err.Error())
	}
}
