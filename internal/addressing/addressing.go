// Package addressing derives the synthetic identities of a domain: MAC
// addresses, gateway IPs and segment-routing switch ids. Every function is a
// pure function of its inputs; results are recomputed on demand and never
// cached.
package addressing

import (
	"fmt"
	"net/netip"
	"strings"

	"ecordtopo/internal/domain"
)

// MACPrefix is the locally administered prefix of every derived host/link MAC.
const MACPrefix = "02:ff:0a"

// maxPosition is the largest switch position expressible as one digit.
const maxPosition = 9

// DeriveMAC builds a MAC from the fixed prefix, two caller-supplied byte tags
// (two hex digits each, e.g. "aa" or "11") and the domain id as the trailing
// byte.
func DeriveMAC(domainID int, byteA, byteB string) (string, error) {
	if err := checkOctet("domain id", domainID); err != nil {
		return "", err
	}
	a, err := normalizeByte(byteA)
	if err != nil {
		return "", err
	}
	b, err := normalizeByte(byteB)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s:%s:%s:%02x", MACPrefix, a, b, domainID), nil
}

// DeriveRouterMAC returns the router MAC of the switch at the given creation
// position: 00:00:00:<domain>:<position>:80.
func DeriveRouterMAC(domainID, position int) (string, error) {
	if err := checkOctet("domain id", domainID); err != nil {
		return "", err
	}
	if err := checkOctet("position", position); err != nil {
		return "", err
	}
	return fmt.Sprintf("00:00:00:%02x:%02x:80", domainID, position), nil
}

// DeriveGatewayIP returns 192.168.<domain>.<index>.
func DeriveGatewayIP(domainID, index int) (netip.Addr, error) {
	if err := checkOctet("domain id", domainID); err != nil {
		return netip.Addr{}, err
	}
	if err := checkOctet("index", index); err != nil {
		return netip.Addr{}, err
	}
	return netip.AddrFrom4([4]byte{192, 168, byte(domainID), byte(index)}), nil
}

// DeriveSwitchID returns the segment-routing id "<domain>0<position>".
// Positions are 1-based and limited to a single digit.
func DeriveSwitchID(domainID, position int) (string, error) {
	if domainID < 1 || domainID > 255 {
		return "", fmt.Errorf("%w: domain id %d not in 1..255", domain.ErrOutOfRange, domainID)
	}
	if position < 1 {
		return "", fmt.Errorf("%w: position %d must be >= 1", domain.ErrOutOfRange, position)
	}
	if position > maxPosition {
		return "", fmt.Errorf("%w: position %d exceeds single digit", domain.ErrUnsupportedScale, position)
	}
	return fmt.Sprintf("%d0%d", domainID, position), nil
}

// VLANAddress returns the address a UNI host uses on a tagged VLAN
// sub-interface: 10.0.<vlan>.<domain>/24.
func VLANAddress(vlan, domainID int) (netip.Prefix, error) {
	if vlan < 1 || vlan > 255 {
		return netip.Prefix{}, fmt.Errorf("%w: vlan %d not in 1..255", domain.ErrOutOfRange, vlan)
	}
	if err := checkOctet("domain id", domainID); err != nil {
		return netip.Prefix{}, err
	}
	return netip.PrefixFrom(netip.AddrFrom4([4]byte{10, 0, byte(vlan), byte(domainID)}), 24), nil
}

// SubnetOf returns the /24 a gateway address serves, keeping the host part
// (e.g. 192.168.1.1 -> 192.168.1.1/24).
func SubnetOf(gateway netip.Addr) string {
	return netip.PrefixFrom(gateway, 24).String()
}

func checkOctet(what string, v int) error {
	if v < 0 || v > 255 {
		return fmt.Errorf("%w: %s %d not in 0..255", domain.ErrOutOfRange, what, v)
	}
	return nil
}

func normalizeByte(s string) (string, error) {
	if len(s) != 2 {
		return "", fmt.Errorf("%w: mac byte %q must be two hex digits", domain.ErrOutOfRange, s)
	}
	s = strings.ToLower(s)
	for _, c := range s {
		if !strings.ContainsRune("0123456789abcdef", c) {
			return "", fmt.Errorf("%w: mac byte %q is not hex", domain.ErrOutOfRange, s)
		}
	}
	return s, nil
}
