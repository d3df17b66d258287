package printer

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/nixxel-company-limited/escpos-feed-printer/adapter"
)

// NetworkPort is the raw-print TCP port every network printer listens on.
const NetworkPort = 9100

// Kind identifies a transport variant.
type Kind int

const (
	KindUSB Kind = iota + 1
	KindNetwork
)

func (k Kind) String() string {
	switch k {
	case KindUSB:
		return "usb"
	case KindNetwork:
		return "network"
	default:
		return "unknown"
	}
}

// ParseKind parses "usb" or "network".
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "usb":
		return KindUSB, nil
	case "network", "net", "tcp":
		return KindNetwork, nil
	default:
		return 0, fmt.Errorf("unknown transport %q", s)
	}
}

// Policy decides whether the transport stays open between jobs.
type Policy int

const (
	// PolicyAuto picks the transport's native policy: per-job for USB,
	// persistent for network.
	PolicyAuto Policy = iota
	// PolicyPerJob opens the transport on acquire and closes it on commit.
	PolicyPerJob
	// PolicyPersistent opens the transport once and keeps it open.
	PolicyPersistent
)

func (p Policy) String() string {
	switch p {
	case PolicyPerJob:
		return "per-job"
	case PolicyPersistent:
		return "persistent"
	default:
		return "auto"
	}
}

// ParsePolicy parses "auto", "per-job" or "persistent".
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return PolicyAuto, nil
	case "per-job", "perjob", "job":
		return PolicyPerJob, nil
	case "persistent", "keepalive":
		return PolicyPersistent, nil
	default:
		return PolicyAuto, fmt.Errorf("unknown connection policy %q", s)
	}
}

// Transport describes how to reach the printer.
type Transport struct {
	Kind Kind

	// Network
	Host        string
	DialTimeout time.Duration

	// USB; zero IDs select the first printer-class device.
	VendorID  uint16
	ProductID uint16
}

// Address returns host:9100 for network transports.
func (t Transport) Address() string {
	return net.JoinHostPort(t.Host, strconv.Itoa(NetworkPort))
}

// Persistent reports whether policy keeps the transport open across jobs.
func (t Transport) Persistent(policy Policy) bool {
	switch policy {
	case PolicyPerJob:
		return false
	case PolicyPersistent:
		return true
	default:
		return t.Kind == KindNetwork
	}
}

// Adapter builds the adapter for the transport.
func (t Transport) Adapter(logger zerolog.Logger) (adapter.Adapter, error) {
	switch t.Kind {
	case KindUSB:
		return adapter.NewUSBAdapter(t.VendorID, t.ProductID, logger), nil
	case KindNetwork:
		if t.Host == "" {
			return nil, fmt.Errorf("network transport requires a host")
		}
		return adapter.NewNetworkAdapter(t.Address(), t.DialTimeout, logger), nil
	default:
		return nil, fmt.Errorf("unknown transport kind %d", t.Kind)
	}
}

func (t Transport) String() string {
	if t.Kind == KindNetwork {
		return "network://" + t.Address()
	}
	if t.VendorID != 0 || t.ProductID != 0 {
		return fmt.Sprintf("usb://%04x:%04x", t.VendorID, t.ProductID)
	}
	return "usb://auto"
}
