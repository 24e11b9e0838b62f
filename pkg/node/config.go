package node

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// BootReason hints to the Hub why a node is sending hello again after a
// prior session. It rides the reconnect path described for Hello in
// the protocol and is never required on a cold boot.
type BootReason string

const (
	BootPowerOn         BootReason = "power_on"
	BootWatchdogReset   BootReason = "watchdog_reset"
	BootManualReconnect BootReason = "manual_reconnect"
)

// TLSPolicy controls how the control HTTP client validates the Hub's
// certificate. Unlike the embedded source this rewrites, an unset
// RootCAPEM with AllowInsecure false is treated as a configuration
// error rather than a silent downgrade to insecure transport.
type TLSPolicy struct {
	AllowInsecure bool
	RootCAPEM     []byte
}

// Intervals holds the cadences for the various periodic actions.
// DefaultNodeConfig fills in default cadences. A zero CommandPoll falls
// back to Heartbeat and a zero RegisterRetry to 2s; other zero values are
// used as they are.
type Intervals struct {
	Heartbeat       time.Duration
	CommandPoll     time.Duration
	RegisterRetry   time.Duration
	TunnelReconnect time.Duration
}

// Credentials carries the pre-shared material a node may be provisioned
// with. None of it is ever written to persistent storage by this package.
type Credentials struct {
	LoginToken  string
	PairingCode string
	InternalKey string
}

// IdentityPrefixes controls how Identity is derived from hardware identity.
type IdentityPrefixes struct {
	MachineIDPrefix    string
	NodeNamePrefix     string
	AppendUniqueSuffix bool
	UseMAC             bool
}

// EndpointPaths lets a deployment override the default Hub paths.
type EndpointPaths struct {
	Hello          string
	Pair           string
	Session        string
	Approve        string
	Heartbeat      string
	CommandsPull   string
	CommandsAck    string
	RegisterBySlot string
}

// BodyCaps bounds response buffers. These exist to keep the control HTTP
// client's memory footprint predictable; they are not security limits.
type BodyCaps struct {
	DefaultResponseBytes int
	PairResponseBytes    int
	MaxTunnelBodyBytes   int
}

// FeatureToggles turns optional protocol branches on or off.
type FeatureToggles struct {
	EnableTunnel             bool
	EnableNodeRegistration   bool
	EnableSelfApprove        bool
	PreferRegisterBySlot     bool
	EnableCommandPolling     bool
	SendReconnectHintInHello bool
}

// NodeConfig is immutable after construction; NewNode copies what it needs
// out of it and never reads it again.
type NodeConfig struct {
	HubBaseURL      string
	SlotID          string
	FirmwareVersion string
	Capabilities    []string

	Intervals   Intervals
	TLS         TLSPolicy
	Credentials Credentials
	Identity    IdentityPrefixes
	Endpoints   EndpointPaths
	BodyCaps    BodyCaps
	Features    FeatureToggles
}

// DefaultNodeConfig returns a NodeConfig with every default from spec §6.3
// applied; callers typically start here and override fields.
func DefaultNodeConfig() NodeConfig {
	return NodeConfig{
		FirmwareVersion: "1.0.0",
		Intervals: Intervals{
			Heartbeat:       5 * time.Second,
			CommandPoll:     5 * time.Second,
			RegisterRetry:   2 * time.Second,
			TunnelReconnect: 5 * time.Second,
		},
		Identity: IdentityPrefixes{
			MachineIDPrefix:    "node-",
			NodeNamePrefix:     "Node-",
			AppendUniqueSuffix: true,
			UseMAC:             true,
		},
		Endpoints: EndpointPaths{
			Hello:          "/api/device/hello",
			Pair:           "/api/device/pair",
			Session:        "/api/device/session",
			Approve:        "/api/device/approve",
			Heartbeat:      "/api/device/heartbeat",
			CommandsPull:   "/api/device/commands/pull",
			CommandsAck:    "/api/device/commands/ack",
			RegisterBySlot: "/api/nodes/register_by_slot",
		},
		BodyCaps: BodyCaps{
			DefaultResponseBytes: 2048,
			PairResponseBytes:    4096,
			MaxTunnelBodyBytes:   4096,
		},
	}
}

// hubURL is the parsed form of HubBaseURL, cached on the Node after
// Validate succeeds so every control request reuses it.
type hubURL struct {
	scheme   string
	host     string
	basePath string
}

// Validate rejects the fatal configuration errors spec.md calls out:
// an absent hub URL or slot id. It also refuses a TLS policy that would
// otherwise silently downgrade to an unverified connection, per the
// deviation recorded in DESIGN.md.
func (c NodeConfig) Validate() error {
	if strings.TrimSpace(c.HubBaseURL) == "" {
		return fmt.Errorf("node config: hub base url is required")
	}
	if strings.TrimSpace(c.SlotID) == "" {
		return fmt.Errorf("node config: slot id is required")
	}
	u, err := url.Parse(c.HubBaseURL)
	if err != nil {
		return fmt.Errorf("node config: invalid hub base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("node config: hub base url scheme must be http or https, got %q", u.Scheme)
	}
	if u.Scheme == "https" && !c.TLS.AllowInsecure && len(c.TLS.RootCAPEM) == 0 {
		return fmt.Errorf("node config: https hub requires either allow_insecure_tls or a root_ca_pem")
	}
	if u.Host == "" {
		return fmt.Errorf("node config: hub base url is missing a host")
	}
	return nil
}

func (c NodeConfig) parsedHub() (hubURL, error) {
	u, err := url.Parse(c.HubBaseURL)
	if err != nil {
		return hubURL{}, err
	}
	base := strings.TrimSuffix(u.Path, "/")
	return hubURL{scheme: u.Scheme, host: u.Host, basePath: base}, nil
}

func (h hubURL) absolutePath(p string) string {
	if h.basePath == "" {
		return p
	}
	return h.basePath + p
}

func (h hubURL) defaultTunnelURL() string {
	scheme := "wss"
	if h.scheme == "http" {
		scheme = "ws"
	}
	return scheme + "://" + h.host + h.absolutePath("/ws/tunnel")
}
