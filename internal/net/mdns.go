package net

import (
	"context"
	"fmt"
	"net"
	"os"
	"sync"
	"time"

	"github.com/hashicorp/mdns"
)

// ServiceType is the mDNS service under which drawing servers announce
// themselves.
const ServiceType = "_shapeboard._tcp"

// Advertise announces a drawing server listening on port. Call Shutdown on
// the returned server to withdraw the announcement.
func Advertise(port int) (*mdns.Server, error) {
	host, err := os.Hostname()
	if err != nil {
		return nil, fmt.Errorf("could not get hostname: %w", err)
	}

	service, err := mdns.NewMDNSService(
		host,
		ServiceType,
		"",
		"",
		port,
		[]net.IP{FirstIPv4()},
		[]string{"ShapeBoard drawing API"},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create mDNS service: %w", err)
	}

	server, err := mdns.NewServer(&mdns.Config{Zone: service})
	if err != nil {
		return nil, fmt.Errorf("failed to start mDNS server: %w", err)
	}
	return server, nil
}

// Browse looks for drawing servers on the local network for up to timeout
// and returns their "host:port" addresses in the order they answered.
func Browse(ctx context.Context, timeout time.Duration) ([]string, error) {
	entries := make(chan *mdns.ServiceEntry, 8)
	var (
		mu    sync.Mutex
		found []string
		seen  = make(map[string]bool)
		done  = make(chan struct{})
	)
	go func() {
		defer close(done)
		for e := range entries {
			if addr, ok := entryAddr(e); ok {
				mu.Lock()
				if !seen[addr] {
					seen[addr] = true
					found = append(found, addr)
				}
				mu.Unlock()
			}
		}
	}()

	params := mdns.DefaultParams(ServiceType)
	params.Entries = entries
	params.Timeout = timeout
	params.DisableIPv6 = true
	err := queryContext(ctx, params)
	close(entries)
	<-done

	if err != nil {
		return nil, fmt.Errorf("mDNS lookup: %w", err)
	}
	return found, nil
}

func queryContext(ctx context.Context, params *mdns.QueryParam) error {
	errc := make(chan error, 1)
	go func() { errc <- mdns.Query(params) }()
	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		// Query returns on its own once params.Timeout passes.
		<-errc
		return ctx.Err()
	}
}

func entryAddr(e *mdns.ServiceEntry) (string, bool) {
	if e == nil || e.AddrV4 == nil || e.Port == 0 {
		return "", false
	}
	return net.JoinHostPort(e.AddrV4.String(), fmt.Sprint(e.Port)), true
}

// FirstIPv4 returns the first IPv4 address of an interface that is up and
// not a loopback, falling back to 127.0.0.1.
func FirstIPv4() net.IP {
	ifaces, _ := net.Interfaces()
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, _ := iface.Addrs()
		for _, a := range addrs {
			if ipnet, ok := a.(*net.IPNet); ok && ipnet.IP.To4() != nil {
				return ipnet.IP.To4()
			}
		}
	}
	return net.IPv4(127, 0, 0, 1)
}
