package node

import "testing"

func TestDeriveIdentityDeterministicAcrossReboots(t *testing.T) {
	cfg := DefaultNodeConfig()
	hw := HardwareIdentity{MAC: "AA:BB:CC:DD:EE:FF", Platform: "esp32"}

	a := deriveIdentity(cfg, hw)
	b := deriveIdentity(cfg, hw)
	if a != b {
		t.Fatalf("identity not deterministic: %+v != %+v", a, b)
	}
	if a.MachineID != "node-aabbccddeeff" {
		t.Fatalf("machine id: got %q", a.MachineID)
	}
}

func TestDeriveIdentityFallsBackToChipID(t *testing.T) {
	cfg := DefaultNodeConfig()
	hw := HardwareIdentity{ChipID: "DEADBEEF", Platform: "esp32"}
	id := deriveIdentity(cfg, hw)
	if id.MachineID != "node-deadbeef" {
		t.Fatalf("machine id: got %q", id.MachineID)
	}
}

func TestCapabilitiesHashMatchesRollingAlgorithm(t *testing.T) {
	got := capabilitiesHash([]string{"gpio", "pwm"})
	var h uint32
	for _, c := range []string{"gpio", "pwm"} {
		for i := 0; i < len(c); i++ {
			h = h*31 + uint32(c[i])
		}
	}
	want := formatHex(h)
	if got != want {
		t.Fatalf("capabilitiesHash: got %q, want %q", got, want)
	}
}

func formatHex(h uint32) string {
	const hexDigits = "0123456789abcdef"
	buf := make([]byte, 8)
	for i := 7; i >= 0; i-- {
		buf[i] = hexDigits[h&0xf]
		h >>= 4
	}
	return string(buf)
}
