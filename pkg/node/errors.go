package node

// setLastError records msg and fires the error observer only when the
// value actually changes, per spec §7's edge-triggered propagation policy.
// An empty msg clears the edge so the next occurrence of the same error
// fires again.
func (n *Node) setLastError(msg string) {
	if msg == n.lastError {
		return
	}
	n.lastError = msg
	if msg != "" {
		n.log.Warn().Str("state", n.state.String()).Str("error", msg).Msg("last_error changed")
		if n.observers.OnError != nil {
			n.observers.OnError(msg)
		}
	}
}

// isAuthFailure reports whether status is one of the codes that
// invalidate a session per spec §4.1 / §7 (401, 403, 410).
func isAuthFailure(status int) bool {
	return status == 401 || status == 403 || status == 410
}
