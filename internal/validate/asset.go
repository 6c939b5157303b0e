// Package validate normalizes and checks user-supplied report scope assets.
package validate

import (
	"fmt"
	"net/netip"
	"regexp"
	"strings"

	"github.com/jamesruggles/reportsuite/internal/database"
)

var emailRegex = regexp.MustCompile(`^[\w.-]+@([\w-]+\.)+[\w-]{2,4}$`)

// Asset trims asset and checks it against its declared type. It returns the
// normalized asset.
func Asset(t database.AssetType, asset string) (string, error) {
	asset = strings.TrimSpace(asset)
	if asset == "" {
		return "", fmt.Errorf("asset cannot be empty")
	}

	switch t {
	case database.AssetIPAddress:
		if _, err := netip.ParseAddr(asset); err != nil {
			return "", fmt.Errorf("the asset contains an invalid IPv4/IPv6 address")
		}
	case database.AssetNetworkRange:
		if err := networkRange(asset); err != nil {
			return "", err
		}
	case database.AssetEmailAddress:
		if !emailRegex.MatchString(asset) {
			return "", fmt.Errorf("the asset contains an invalid email address")
		}
	default:
		return "", fmt.Errorf("unknown asset type: %s", t)
	}
	return asset, nil
}

// networkRange accepts a bare address as a single-host network. Host bits
// must be zero.
func networkRange(asset string) error {
	if !strings.Contains(asset, "/") {
		if _, err := netip.ParseAddr(asset); err != nil {
			return fmt.Errorf("the asset contains an invalid IPv4/IPv6 network range")
		}
		return nil
	}
	p, err := netip.ParsePrefix(asset)
	if err != nil {
		return fmt.Errorf("the asset contains an invalid IPv4/IPv6 network range")
	}
	if p.Masked() != p {
		return fmt.Errorf("network range %s has host bits set", asset)
	}
	return nil
}
