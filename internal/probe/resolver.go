// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package probe

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/miekg/dns"

	"grimm.is/multiwan/internal/errors"
)

// resolver answers hostname lookups against per-interface nameservers,
// with the query socket bound to the interface. This mirrors the
// per-link resolver the system resolver would use for that interface;
// without it, lookups would leak through whichever path currently holds
// the default route.
type resolver struct {
	servers []string
	client  *dns.Client
	timeout time.Duration
}

func newResolver(servers []string, ifname string, timeout time.Duration) *resolver {
	addrs := make([]string, 0, len(servers))
	for _, s := range servers {
		if _, _, err := net.SplitHostPort(s); err != nil {
			s = net.JoinHostPort(s, "53")
		}
		addrs = append(addrs, s)
	}
	return &resolver{
		servers: addrs,
		timeout: timeout,
		client: &dns.Client{
			Timeout: timeout,
			Dialer: &net.Dialer{
				Timeout: timeout,
				Control: bindControl(ifname),
			},
		},
	}
}

// lookup resolves host to IP addresses, trying each configured server
// in order, A before AAAA.
func (r *resolver) lookup(ctx context.Context, host string) ([]net.IP, error) {
	var lastErr error
	for _, server := range r.servers {
		for _, qtype := range []uint16{dns.TypeA, dns.TypeAAAA} {
			m := new(dns.Msg)
			m.SetQuestion(dns.Fqdn(host), qtype)
			m.RecursionDesired = true

			resp, _, err := r.client.ExchangeContext(ctx, m, server)
			if err != nil {
				lastErr = err
				continue
			}
			if resp.Rcode != dns.RcodeSuccess {
				lastErr = fmt.Errorf("dns %s for %s: %s", server, host, dns.RcodeToString[resp.Rcode])
				continue
			}
			var ips []net.IP
			for _, rr := range resp.Answer {
				switch a := rr.(type) {
				case *dns.A:
					ips = append(ips, a.A)
				case *dns.AAAA:
					ips = append(ips, a.AAAA)
				}
			}
			if len(ips) > 0 {
				return ips, nil
			}
		}
	}
	if lastErr == nil {
		return nil, errors.Errorf(errors.KindProbe, "no address for %s", host)
	}
	return nil, errors.Wrapf(lastErr, errors.KindProbe, "failed to resolve %s", host)
}

type dialFunc func(ctx context.Context, network, address string) (net.Conn, error)

// wrapDial returns a dial function that resolves hostnames through the
// per-interface resolver before handing the literal address to next.
func (r *resolver) wrapDial(next dialFunc) dialFunc {
	return func(ctx context.Context, network, address string) (net.Conn, error) {
		host, port, err := net.SplitHostPort(address)
		if err != nil {
			return next(ctx, network, address)
		}
		if ip := net.ParseIP(host); ip != nil {
			return next(ctx, network, address)
		}

		ips, err := r.lookup(ctx, host)
		if err != nil {
			return nil, err
		}
		var lastErr error
		for _, ip := range ips {
			conn, err := next(ctx, network, net.JoinHostPort(ip.String(), port))
			if err == nil {
				return conn, nil
			}
			lastErr = err
		}
		return nil, lastErr
	}
}
