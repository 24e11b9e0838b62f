package node

import "time"

// tryRegisterBySlot implements §4.1.5, the pre-shared-login-token path.
// It is only ever attempted when PreferRegisterBySlot is set and a login
// token is configured; callers decide ordering against Hello/pairing.
func (n *Node) tryRegisterBySlot(now time.Time) bool {
	if !n.cfg.Features.PreferRegisterBySlot || n.cfg.Credentials.LoginToken == "" {
		return false
	}

	req := registerBySlotRequest{
		SlotID:       n.cfg.SlotID,
		LoginToken:   n.cfg.Credentials.LoginToken,
		MachineID:    n.identity.MachineID,
		Platform:     n.hw.Platform,
		AgentVersion: n.cfg.FirmwareVersion,
	}
	status, doc, err := n.controlPost(n.cfg.Endpoints.RegisterBySlot, "", req, n.cfg.BodyCaps.DefaultResponseBytes)
	if err != nil || status < 200 || status >= 300 {
		n.netBackoff.advance()
		n.setLastError("register_by_slot: failed, falling back to hello")
		n.setState(StateHello)
		n.nextHelloMs = nowMs(now) + n.netBackoff.current()
		return true
	}

	nodeID := docString(doc, "node_id")
	authToken := docString(doc, "node_auth_token")
	if nodeID == "" || authToken == "" {
		n.setLastError("register_by_slot: incomplete response, falling back to hello")
		n.setState(StateHello)
		n.nextHelloMs = nowMs(now) + n.netBackoff.current()
		return true
	}

	n.reg.NodeID = nodeID
	n.reg.NodeAuthToken = authToken
	if url := docString(doc, "tunnel_url"); url != "" {
		n.reg.TunnelURL = url
	}
	n.everRegistered = true
	n.isRegistered = true
	n.netBackoff.reset()
	n.promoteToActive(now)
	return true
}
