package provider

import (
	"fmt"
	"net/netip"
	"time"

	"github.com/libdns/libdns"

	"github.com/mstrel/dns-fanout/internal/record"
)

// FromLibdns converts a libdns record into a spec anchored in zone.
// libdns names are zone-relative; the hostname is re-qualified.
func FromLibdns(r libdns.Record, zone string) RecordSpec {
	rr := r.RR()
	return RecordSpec{
		Zone:     zone,
		Hostname: libdns.AbsoluteName(rr.Name, zone),
		Type:     record.Type(rr.Type),
		Content:  rr.Data,
		TTL:      int(rr.TTL.Seconds()),
	}
}

// ToLibdns converts a planned spec into a typed libdns record.
func ToLibdns(spec RecordSpec) (libdns.Record, error) {
	name := libdns.RelativeName(spec.Hostname, spec.Zone)
	ttl := time.Duration(spec.TTL) * time.Second

	switch spec.Type {
	case record.TypeA, record.TypeAAAA:
		addr, err := netip.ParseAddr(spec.Content)
		if err != nil {
			return nil, fmt.Errorf("fail parse ip addr %s, err=%w", spec.Content, err)
		}
		return &libdns.Address{
			Name: name,
			IP:   addr,
			TTL:  ttl,
		}, nil
	case record.TypeCNAME:
		return &libdns.CNAME{
			Name:   name,
			Target: spec.Content,
			TTL:    ttl,
		}, nil
	case record.TypeNS:
		return &libdns.NS{
			Name:   name,
			Target: spec.Content,
			TTL:    ttl,
		}, nil
	case record.TypeTXT:
		return &libdns.TXT{
			Name: name,
			Text: spec.Content,
			TTL:  ttl,
		}, nil
	default:
		rr := libdns.RR{
			Name: name,
			Type: string(spec.Type),
			Data: spec.Content,
			TTL:  ttl,
		}
		return rr, nil
	}
}
