package discovery

import (
	"context"
	"net"
	"time"

	"github.com/hashicorp/mdns"
	"github.com/pkg/errors"

	"github.com/jake-scott/dirigera-bridge/internal/pkg/logging"
)

const (
	// ServiceType is the mDNS service the hub advertises
	ServiceType = "_ihsp._tcp"

	// DefaultTimeout bounds a single discovery attempt
	DefaultTimeout = time.Second * 30
)

// ErrDiscoveryTimeout is returned when nothing answered before the timeout
var ErrDiscoveryTimeout = errors.New("hub discovery timed out")

// Result is the outcome of a discovery attempt.  Found is false only
// together with a non-nil error from Locate.
type Result struct {
	Found   bool
	Address string
	Name    string
}

// QueryFunc runs one mDNS query, delivering answers on params.Entries and
// returning when ctx is done or params.Timeout elapses
type QueryFunc func(ctx context.Context, params *mdns.QueryParam) error

// Locator finds the hub on the local network
type Locator struct {
	service string
	domain  string
	query   QueryFunc
}

func NewLocator() *Locator {
	return &Locator{
		service: ServiceType,
		domain:  "local",
		query:   mdns.QueryContext,
	}
}

func (l *Locator) WithService(service string) *Locator {
	nl := *l
	nl.service = service
	return &nl
}

func (l *Locator) WithQueryFunc(q QueryFunc) *Locator {
	nl := *l
	nl.query = q
	return &nl
}

// Locate resolves with the address of the first responder.  The mDNS
// client is shut down before Locate returns, on every path.  Retrying is
// left to the caller.
func (l *Locator) Locate(parent context.Context, timeout time.Duration) (Result, error) {
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	entries := make(chan *mdns.ServiceEntry, 8)
	queryErr := make(chan error, 1)

	params := &mdns.QueryParam{
		Service:             l.service,
		Domain:              l.domain,
		Timeout:             timeout,
		Entries:             entries,
		DisableIPv6:         true,
		WantUnicastResponse: true,
	}

	logging.Logger(ctx).Infof("looking for hub via mDNS (%s.%s), timeout %s", l.service, l.domain, timeout)

	go func() {
		defer close(entries)
		queryErr <- l.query(ctx, params)
	}()

	// stop the query and wait for the client to release its sockets
	release := func() {
		cancel()
		for range entries {
		}
	}

	for {
		select {
		case entry, ok := <-entries:
			if !ok {
				return Result{}, l.finishedWithoutAnswer(parent, <-queryErr)
			}

			addr := entryAddress(entry)
			if addr == "" {
				logging.Logger(ctx).Debugf("ignoring mDNS entry %s without an address", entry.Name)
				continue
			}

			release()
			logging.Logger(ctx).Infof("found hub %s at %s", entry.Name, addr)
			return Result{Found: true, Address: addr, Name: entry.Name}, nil

		case <-ctx.Done():
			release()
			return Result{}, l.finishedWithoutAnswer(parent, <-queryErr)
		}
	}
}

func (l *Locator) finishedWithoutAnswer(parent context.Context, err error) error {
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return errors.Wrap(err, "querying mDNS")
	}

	if parent.Err() != nil {
		return parent.Err()
	}

	return ErrDiscoveryTimeout
}

func entryAddress(entry *mdns.ServiceEntry) string {
	for _, ip := range []net.IP{entry.AddrV4, entry.AddrV6, entry.Addr} {
		if ip != nil && !ip.IsUnspecified() {
			return ip.String()
		}
	}

	return ""
}
