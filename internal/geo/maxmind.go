package geo

import (
	"context"
	"fmt"
	"net"

	"github.com/oschwald/geoip2-golang"
)

// MaxMindLookup reads a local GeoLite2-City database.
type MaxMindLookup struct {
	db *geoip2.Reader
}

func NewMaxMindLookup(path string) (*MaxMindLookup, error) {
	db, err := geoip2.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open geoip database: %w", err)
	}
	return &MaxMindLookup{db: db}, nil
}

func (m *MaxMindLookup) City(_ context.Context, ip net.IP) (Location, error) {
	record, err := m.db.City(ip)
	if err != nil {
		return Location{}, fmt.Errorf("geoip city lookup: %w", err)
	}
	loc := Location{
		Country:   localizedName(record.Country.Names),
		City:      localizedName(record.City.Names),
		Timezone:  record.Location.TimeZone,
		Latitude:  record.Location.Latitude,
		Longitude: record.Location.Longitude,
	}
	if len(record.Subdivisions) > 0 {
		loc.Region = localizedName(record.Subdivisions[0].Names)
	}
	return loc, nil
}

func (m *MaxMindLookup) Close() error {
	if m == nil || m.db == nil {
		return nil
	}
	return m.db.Close()
}

func localizedName(names map[string]string) string {
	if name, ok := names["en"]; ok {
		return name
	}
	for _, name := range names {
		return name
	}
	return ""
}
