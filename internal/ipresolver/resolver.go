// Package ipresolver discovers the host's current public IP address by
// walking an ordered chain of external sources and returning the first
// answer that parses as an IP literal.
package ipresolver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/netip"
	"strings"
	"time"

	"github.com/evanofslack/dyndns-sync/internal/metrics"
	"github.com/miekg/dns"
)

// ErrNoPublicIP is returned when every source in the chain fails.
// Recoverable; the next scheduled pass retries.
var ErrNoPublicIP = errors.New("no source returned a public ip")

var defaultEndpoints = []string{
	"https://api.ipify.org",
	"https://icanhazip.com",
	"https://checkip.amazonaws.com",
}

const (
	requestTimeout = 10 * time.Second
	maxBodyBytes   = 256

	opendnsHost     = "myip.opendns.com."
	opendnsResolver = "resolver1.opendns.com:53"
)

type Resolver interface {
	Resolve(ctx context.Context) (netip.Addr, error)
}

type Httper interface {
	Do(req *http.Request) (*http.Response, error)
}

// source is one way of learning the public address. Sources are tried
// in order; the first valid answer wins.
type source interface {
	name() string
	lookup(ctx context.Context) (netip.Addr, error)
}

type resolver struct {
	sources []source
	metrics *metrics.Metrics
}

// New builds a resolver over the given HTTP echo endpoints. With no
// endpoints configured, the defaults are used and a DNS lookup against
// OpenDNS is appended as the last resort.
func New(endpoints []string, metrics *metrics.Metrics) Resolver {
	httper := &http.Client{Timeout: requestTimeout}
	dnsFallback := false
	if len(endpoints) == 0 {
		endpoints = defaultEndpoints
		dnsFallback = true
	}

	sources := make([]source, 0, len(endpoints)+1)
	for _, endpoint := range endpoints {
		sources = append(sources, &httpSource{url: endpoint, http: httper})
	}
	if dnsFallback {
		sources = append(sources, &dnsSource{host: opendnsHost, server: opendnsResolver})
	}
	return &resolver{sources: sources, metrics: metrics}
}

func (r *resolver) Resolve(ctx context.Context) (netip.Addr, error) {
	for _, src := range r.sources {
		addr, err := src.lookup(ctx)
		if err != nil {
			slog.Debug("Public IP source failed, trying next", "source", src.name(), "error", err)
			r.metrics.IncIPResolution(src.name(), false)
			continue
		}
		r.metrics.IncIPResolution(src.name(), true)
		slog.Debug("Resolved public IP", "source", src.name(), "ip", addr)
		return addr, nil
	}
	return netip.Addr{}, ErrNoPublicIP
}

type httpSource struct {
	url  string
	http Httper
}

func (s *httpSource) name() string { return s.url }

func (s *httpSource) lookup(ctx context.Context) (netip.Addr, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return netip.Addr{}, err
	}
	resp, err := s.http.Do(req)
	if err != nil {
		return netip.Addr{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return netip.Addr{}, fmt.Errorf("ip endpoint request, status=%d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return netip.Addr{}, err
	}
	addr, err := netip.ParseAddr(strings.TrimSpace(string(body)))
	if err != nil {
		return netip.Addr{}, fmt.Errorf("parse ip endpoint body, err=%w", err)
	}
	return addr, nil
}

type dnsSource struct {
	host   string
	server string
}

func (s *dnsSource) name() string { return "dns:" + s.host }

func (s *dnsSource) lookup(ctx context.Context) (netip.Addr, error) {
	c := new(dns.Client)
	m := new(dns.Msg)
	m.SetQuestion(s.host, dns.TypeA)

	r, _, err := c.ExchangeContext(ctx, m, s.server)
	if err != nil {
		return netip.Addr{}, err
	}
	if r.Rcode != dns.RcodeSuccess {
		return netip.Addr{}, fmt.Errorf("ip dns query, rcode=%s", dns.RcodeToString[r.Rcode])
	}
	for _, ans := range r.Answer {
		if a, ok := ans.(*dns.A); ok {
			if addr, err := netip.ParseAddr(a.A.String()); err == nil {
				return addr, nil
			}
		}
	}
	return netip.Addr{}, fmt.Errorf("ip dns query returned no A records")
}
