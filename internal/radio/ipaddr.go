package radio

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/vishvananda/netlink"
)

// ErrNoAddress is returned when an interface has no usable IPv4 address.
var ErrNoAddress = errors.New("no IPv4 address assigned")

// InterfaceIPv4 returns the first non-loopback IPv4 address on iface.
func InterfaceIPv4(iface string) (string, error) {
	link, err := netlink.LinkByName(iface)
	if err != nil {
		return "", fmt.Errorf("failed to find link %s: %w", iface, err)
	}

	addrs, err := netlink.AddrList(link, netlink.FAMILY_V4)
	if err != nil {
		return "", fmt.Errorf("failed to list addresses on %s: %w", iface, err)
	}

	for _, a := range addrs {
		if a.IP == nil || a.IP.IsLoopback() || a.IP.IsLinkLocalUnicast() {
			continue
		}
		if ip4 := a.IP.To4(); ip4 != nil {
			return ip4.String(), nil
		}
	}
	return "", fmt.Errorf("%s: %w", iface, ErrNoAddress)
}

// HostIPv4 returns the first non-loopback IPv4 address on any interface.
func HostIPv4() (string, error) {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return "", err
	}
	for _, a := range addrs {
		ipnet, ok := a.(*net.IPNet)
		if !ok || ipnet.IP.IsLoopback() {
			continue
		}
		if ip4 := ipnet.IP.To4(); ip4 != nil {
			return ip4.String(), nil
		}
	}
	return "", ErrNoAddress
}

// WaitIPv4 polls lookup until iface has an address or ctx is done.
func WaitIPv4(ctx context.Context, iface string, lookup func(string) (string, error), every time.Duration) (string, error) {
	if lookup == nil {
		lookup = InterfaceIPv4
	}
	if every <= 0 {
		every = 500 * time.Millisecond
	}

	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		ip, err := lookup(iface)
		if err == nil && ip != "" {
			return ip, nil
		}
		select {
		case <-ctx.Done():
			if err == nil {
				err = ErrNoAddress
			}
			return "", fmt.Errorf("waiting for address on %s: %w", iface, err)
		case <-ticker.C:
		}
	}
}
