// Package geo enriches client IP addresses with coarse location data.
// Resolution is best-effort: it degrades to an all-Unknown location rather
// than surfacing an error, so it can never block a login.
package geo

import (
	"context"
	"log/slog"
	"net"
)

const Unknown = "Unknown"

type Location struct {
	IPAddress string  `json:"ip_address"`
	Country   string  `json:"country"`
	Region    string  `json:"region"`
	City      string  `json:"city"`
	Timezone  string  `json:"timezone"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Lookup is the external geolocation collaborator. Implementations may be
// absent entirely; the resolver treats a nil Lookup as a permanent miss.
type Lookup interface {
	City(ctx context.Context, ip net.IP) (Location, error)
}

type Resolver struct {
	lookup Lookup
	logger *slog.Logger
}

func NewResolver(lookup Lookup, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{lookup: lookup, logger: logger}
}

// Resolve maps an IP to a location. The second return is false when the
// all-Unknown default was used (private address, missing collaborator, or a
// failed lookup).
func (r *Resolver) Resolve(ctx context.Context, ipAddress string) (Location, bool) {
	loc := unknownLocation(ipAddress)

	ip := net.ParseIP(ipAddress)
	if ip == nil {
		return loc, false
	}
	// Private and loopback traffic never reaches the external lookup.
	if isPrivate(ip) {
		return loc, false
	}
	if r.lookup == nil {
		return loc, false
	}

	resolved, err := r.lookup.City(ctx, ip)
	if err != nil {
		r.logger.Debug("geo lookup failed", "ip", ipAddress, "error", err)
		return loc, false
	}
	resolved.IPAddress = ipAddress
	fillUnknown(&resolved)
	return resolved, true
}

func unknownLocation(ipAddress string) Location {
	return Location{
		IPAddress: ipAddress,
		Country:   Unknown,
		Region:    Unknown,
		City:      Unknown,
		Timezone:  Unknown,
	}
}

func fillUnknown(loc *Location) {
	if loc.Country == "" {
		loc.Country = Unknown
	}
	if loc.Region == "" {
		loc.Region = Unknown
	}
	if loc.City == "" {
		loc.City = Unknown
	}
	if loc.Timezone == "" {
		loc.Timezone = Unknown
	}
}

var privateNetworks = mustParseCIDRs(
	"10.0.0.0/8",
	"172.16.0.0/12",
	"192.168.0.0/16",
	"fc00::/7",
)

func isPrivate(ip net.IP) bool {
	if ip.IsLoopback() {
		return true
	}
	for _, network := range privateNetworks {
		if network.Contains(ip) {
			return true
		}
	}
	return false
}

func mustParseCIDRs(cidrs ...string) []*net.IPNet {
	networks := make([]*net.IPNet, 0, len(cidrs))
	for _, cidr := range cidrs {
		_, network, err := net.ParseCIDR(cidr)
		if err != nil {
			panic(err)
		}
		networks = append(networks, network)
	}
	return networks
}
