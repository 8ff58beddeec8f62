package reconcile

import (
	"github.com/evanofslack/dyndns-sync/internal/config"
	"github.com/evanofslack/dyndns-sync/internal/provider"
	"github.com/libdns/libdns"
)

// Qualify returns the fully qualified name of a configured record within
// its zone. An empty name or "@" refers to the zone apex.
func Qualify(zone, name string) string {
	return libdns.AbsoluteName(name, zone)
}

// matchRecord finds the existing record corresponding to a configured
// record: exact string match on qualified name and type, no
// normalization. Providers may return duplicate (name, type) pairs;
// the first in list order wins.
func matchRecord(zone config.Zone, rec config.Record, existing []provider.Record) (int, bool) {
	qualified := Qualify(zone.Name, rec.Name)
	for i, ex := range existing {
		if ex.Name == qualified && ex.Type == rec.Type {
			return i, true
		}
	}
	return -1, false
}
