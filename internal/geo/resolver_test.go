package geo

import (
	"context"
	"errors"
	"net"
	"testing"
)

type fakeLookup struct {
	calls    int
	location Location
	err      error
}

func (f *fakeLookup) City(_ context.Context, _ net.IP) (Location, error) {
	f.calls++
	return f.location, f.err
}

func TestResolvePrivateAddressesSkipLookup(t *testing.T) {
	lookup := &fakeLookup{location: Location{Country: "Germany"}}
	resolver := NewResolver(lookup, nil)

	for _, ip := range []string{"127.0.0.1", "::1", "10.1.2.3", "172.16.0.9", "192.168.1.50", "fc00::1"} {
		loc, resolved := resolver.Resolve(context.Background(), ip)
		if resolved {
			t.Fatalf("%s: expected unresolved", ip)
		}
		if loc.Country != Unknown || loc.City != Unknown {
			t.Fatalf("%s: expected Unknown location, got %+v", ip, loc)
		}
		if loc.IPAddress != ip {
			t.Fatalf("%s: raw address not preserved: %+v", ip, loc)
		}
	}
	if lookup.calls != 0 {
		t.Fatalf("lookup invoked %d times for private addresses", lookup.calls)
	}
}

func TestResolvePublicAddress(t *testing.T) {
	lookup := &fakeLookup{location: Location{
		Country:  "Germany",
		City:     "Berlin",
		Timezone: "Europe/Berlin",
		Latitude: 52.52,
	}}
	resolver := NewResolver(lookup, nil)

	loc, resolved := resolver.Resolve(context.Background(), "93.184.216.34")
	if !resolved {
		t.Fatal("expected resolved location")
	}
	if lookup.calls != 1 {
		t.Fatalf("lookup calls = %d, want 1", lookup.calls)
	}
	if loc.Country != "Germany" || loc.City != "Berlin" {
		t.Fatalf("unexpected location: %+v", loc)
	}
	// Empty fields from the provider degrade to Unknown, not "".
	if loc.Region != Unknown {
		t.Fatalf("region = %q, want %q", loc.Region, Unknown)
	}
	if loc.IPAddress != "93.184.216.34" {
		t.Fatalf("ip address not set: %+v", loc)
	}
}

func TestResolveDegradesOnFailure(t *testing.T) {
	cases := []struct {
		name   string
		lookup Lookup
		ip     string
	}{
		{"unparseable ip", &fakeLookup{}, "not-an-ip"},
		{"empty ip", &fakeLookup{}, ""},
		{"nil lookup", nil, "93.184.216.34"},
		{"lookup error", &fakeLookup{err: errors.New("db unavailable")}, "93.184.216.34"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resolver := NewResolver(tc.lookup, nil)
			loc, resolved := resolver.Resolve(context.Background(), tc.ip)
			if resolved {
				t.Fatal("expected unresolved")
			}
			if loc.Country != Unknown || loc.Region != Unknown || loc.City != Unknown || loc.Timezone != Unknown {
				t.Fatalf("expected all-Unknown location, got %+v", loc)
			}
		})
	}
}
