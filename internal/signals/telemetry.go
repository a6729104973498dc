package signals

import "strings"

// Known-bad IPs: private ranges showing up externally plus simulated
// Tor/VPN exits.
var anomalousIPs = map[string]bool{
	"10.0.0.1":      true,
	"192.168.1.1":   true,
	"185.220.101.1": true,
	"45.33.32.156":  true,
}

// User-agent substrings that identify emulated clients.
var emulatorUAKeywords = []string{
	"emulator", "android sdk", "genymotion", "bluestacks", "nox",
}

// DeriveDeviceSignals builds device flags from raw transaction telemetry:
// the user agent, source IP and device identifier. Deterministic so
// repeated analysis of the same transaction yields the same flags.
func DeriveDeviceSignals(deviceID, ipAddress, userAgent string) DeviceSignals {
	ua := strings.ToLower(userAgent)

	isEmulator := false
	for _, kw := range emulatorUAKeywords {
		if strings.Contains(ua, kw) {
			isEmulator = true
			break
		}
	}

	return DeviceSignals{
		IsEmulator:       isEmulator,
		AnomalousIP:      anomalousIPs[ipAddress],
		SuspiciousTyping: suspiciousTyping(deviceID),
		Fingerprint:      Fingerprint(deviceID),
	}
}

// suspiciousTyping stands in for a real keystroke-dynamics feed: a
// deterministic per-device draw with roughly 15% of devices flagged.
func suspiciousTyping(deviceID string) bool {
	if deviceID == "" {
		return false
	}
	return seedFrom(deviceID)%100 < 15
}
