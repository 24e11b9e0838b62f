package node

import "strings"

// HardwareIdentity is supplied by the host process; deriving a MAC address
// or chip id is a platform concern this package never performs itself.
type HardwareIdentity struct {
	MAC     string
	ChipID  string
	Platform string
}

// Identity is derived once at construction and cached for the lifetime of
// the Node. It is never persisted; a process restart re-derives it from
// the same HardwareIdentity, which is why it comes out identical across
// reboots for a given device (spec invariant 5).
type Identity struct {
	MAC       string
	MachineID string
	NodeName  string
}

func deriveIdentity(cfg NodeConfig, hw HardwareIdentity) Identity {
	var unique string
	if cfg.Identity.UseMAC && hw.MAC != "" {
		unique = strings.ToLower(strings.ReplaceAll(hw.MAC, ":", ""))
	} else {
		unique = strings.ToLower(hw.ChipID)
	}

	machineID := cfg.Identity.MachineIDPrefix
	nodeName := cfg.Identity.NodeNamePrefix
	if cfg.Identity.AppendUniqueSuffix && unique != "" {
		machineID += unique
		nodeName += unique
	}
	return Identity{
		MAC:       hw.MAC,
		MachineID: machineID,
		NodeName:  nodeName,
	}
}
