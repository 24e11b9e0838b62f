package node

import "testing"

func TestValidateRejectsMissingHubURL(t *testing.T) {
	cfg := DefaultNodeConfig()
	cfg.SlotID = "s1"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for missing hub base url")
	}
}

func TestValidateRejectsMissingSlotID(t *testing.T) {
	cfg := DefaultNodeConfig()
	cfg.HubBaseURL = "http://hub.local"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for missing slot id")
	}
}

func TestValidateRejectsSilentInsecureDowngrade(t *testing.T) {
	cfg := DefaultNodeConfig()
	cfg.HubBaseURL = "https://hub.local"
	cfg.SlotID = "s1"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for https with no tls policy")
	}
}

func TestValidateAcceptsInsecureWhenExplicit(t *testing.T) {
	cfg := DefaultNodeConfig()
	cfg.HubBaseURL = "https://hub.local"
	cfg.SlotID = "s1"
	cfg.TLS.AllowInsecure = true
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestParsedHubSplitsBasePath(t *testing.T) {
	cfg := DefaultNodeConfig()
	cfg.HubBaseURL = "http://hub.local:9090/edge"
	cfg.SlotID = "s1"
	hub, err := cfg.parsedHub()
	if err != nil {
		t.Fatalf("parsedHub: %v", err)
	}
	if hub.absolutePath("/api/device/hello") != "/edge/api/device/hello" {
		t.Fatalf("absolutePath: got %q", hub.absolutePath("/api/device/hello"))
	}
	if hub.defaultTunnelURL() != "ws://hub.local:9090/edge/ws/tunnel" {
		t.Fatalf("defaultTunnelURL: got %q", hub.defaultTunnelURL())
	}
}
