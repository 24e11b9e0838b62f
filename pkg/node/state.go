package node

// State enumerates the session state machine's states from spec §4.1.
// Boot is the entry state; Error is a sink with recovery, re-entering
// Hello once its backoff elapses.
type State int

const (
	StateBoot State = iota
	StateHello
	StatePairSubmit
	StatePendingPoll
	StateGranted
	StateActive
	StateTunnelConnecting
	StateTunnelConnected
	StateError
)

func (s State) String() string {
	switch s {
	case StateBoot:
		return "Boot"
	case StateHello:
		return "Hello"
	case StatePairSubmit:
		return "PairSubmit"
	case StatePendingPoll:
		return "PendingPoll"
	case StateGranted:
		return "Granted"
	case StateActive:
		return "Active"
	case StateTunnelConnecting:
		return "TunnelConnecting"
	case StateTunnelConnected:
		return "TunnelConnected"
	case StateError:
		return "Error"
	default:
		return "Unknown"
	}
}

// pendingMode distinguishes the two different exchanges that both land in
// PendingPoll: self-approve submission versus a plain session poll. The
// state machine enum in spec §4.1 only names the outer state; this field
// is the bookkeeping needed to know which HTTP action to fire there.
type pendingMode int

const (
	pendingModeSessionPoll pendingMode = iota
	pendingModeSelfApprove
)

// InboundRequest is the abstract shape handed to a user-registered
// handler for inbound tunnel HTTP traffic (spec §4.4.1).
type InboundRequest struct {
	Method  string
	Path    string
	Headers map[string]string
	Body    []byte
}

// InboundResponse is what a Handler returns for a request it chose to
// handle. Handled=false falls through to the built-in routes.
type InboundResponse struct {
	Status      int
	ContentType string
	Body        []byte
	Handled     bool
}

// Handler is the application-level callback the core delegates inbound
// tunnel HTTP requests to. It is an external collaborator per spec §1 --
// this package never assumes anything about its implementation beyond
// "returns promptly".
type Handler func(req InboundRequest) InboundResponse

// Observers groups the synchronous, edge-triggered callbacks spec §5 and
// §7 describe. Every field is optional; a nil observer is simply not called.
type Observers struct {
	OnStateChange   func(from, to State)
	OnError         func(message string)
	OnRegistered    func(nodeID string)
	OnTunnelChange  func(connected bool)
	OnTunnelMessage func(raw []byte)
}
