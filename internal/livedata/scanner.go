package livedata

import (
	"context"
	"net/netip"
	"os/exec"
	"time"
)

// Host is one live address reported by a network sweep. Services are
// "name:port" pairs.
type Host struct {
	Addr     netip.Addr
	Hostname string
	Services []string
}

// Scanner sweeps a subnet for live hosts.
type Scanner interface {
	Scan(ctx context.Context, subnet netip.Prefix) ([]Host, error)
}

// EventSource queries a SIEM for events within a time range.
type EventSource interface {
	Query(ctx context.Context, start, end time.Time) ([]SecurityEvent, error)
}

// Prober reports whether the vulnerability scanner is reachable.
type Prober interface {
	Available(ctx context.Context) bool
}

type simulatedHost struct {
	last     byte
	hostname string
	services []string
}

var simulatedHosts = []simulatedHost{
	{1, "gateway.local", []string{"ssh:22", "http:80", "https:443"}},
	{10, "fileserver.local", []string{"ssh:22", "netbios-ssn:139", "microsoft-ds:445"}},
	{20, "webserver.local", []string{"ssh:22", "http:80", "https:443", "mysql:3306"}},
	{100, "workstation.local", []string{"msrpc:135", "netbios-ssn:139", "microsoft-ds:445", "ms-wbt-server:3389"}},
}

// SimulatedScanner answers every sweep with a fixed office network placed
// in the /24 that holds the subnet's base address.
type SimulatedScanner struct{}

func (SimulatedScanner) Scan(ctx context.Context, subnet netip.Prefix) ([]Host, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	base := subnet.Masked().Addr().As4()

	hosts := make([]Host, 0, len(simulatedHosts))
	for _, h := range simulatedHosts {
		ip := base
		ip[3] = h.last
		hosts = append(hosts, Host{
			Addr:     netip.AddrFrom4(ip),
			Hostname: h.hostname,
			Services: append([]string(nil), h.services...),
		})
	}
	return hosts, nil
}

// NoEvents is an EventSource with nothing to report.
type NoEvents struct{}

func (NoEvents) Query(context.Context, time.Time, time.Time) ([]SecurityEvent, error) {
	return nil, nil
}

// BinaryProber treats the scanner as reachable when its CLI is on PATH.
type BinaryProber struct {
	Binary string
}

func (p BinaryProber) Available(ctx context.Context) bool {
	if ctx.Err() != nil {
		return false
	}
	_, err := exec.LookPath(p.Binary)
	return err == nil
}
