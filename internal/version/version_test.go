// ABOUTME: Tests for version constants
// ABOUTME: Checks the identification strings the player reports
package version

import (
	"regexp"
	"strings"
	"testing"
)

var semver = regexp.MustCompile(`^\d+\.\d+\.\d+(-[0-9A-Za-z.-]+)?$`)

func TestIdentification(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  string
	}{
		{"product", Product, "Resonate Card Player"},
		{"manufacturer", Manufacturer, "Resonate Protocol"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.value != tt.want {
				t.Errorf("expected %q, got %q", tt.want, tt.value)
			}
		})
	}
}

func TestVersionIsSemver(t *testing.T) {
	if !semver.MatchString(Version) {
		t.Errorf("version %q is not MAJOR.MINOR.PATCH", Version)
	}
}

// The listener names itself after the product; the stream shows it to clients
func TestProductFitsDeviceInfo(t *testing.T) {
	if strings.TrimSpace(Product) != Product {
		t.Errorf("product %q has surrounding whitespace", Product)
	}
	if len(Product) > 64 {
		t.Errorf("product name is %d bytes, too long for device info", len(Product))
	}
}
