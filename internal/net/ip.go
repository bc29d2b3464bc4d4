package net

import (
	"net"
)

// OutgoingIP finds the LAN address other machines should use to reach this
// host. No packet is sent: dialing UDP only selects a route.
func OutgoingIP() string {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		// offline networks: pick an interface address instead
		return FirstIPv4().String()
	}
	defer conn.Close()

	if addr, ok := conn.LocalAddr().(*net.UDPAddr); ok {
		return addr.IP.String()
	}
	return FirstIPv4().String()
}
