// ABOUTME: Version and product identification
// ABOUTME: Reported in logs, the status view and stream device info
package version

const (
	Product      = "Resonate Card Player"
	Manufacturer = "Resonate Protocol"
	Version      = "0.1.0"
)
