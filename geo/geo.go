package geo

import (
	"context"
	"errors"
)

// Position is a device-reported coordinate pair.
type Position struct {
	Latitude  float64
	Longitude float64
}

// Provider is the device location capability. Implementations block until a
// fix is available, the context expires, or the capability fails.
type Provider interface {
	CurrentPosition(ctx context.Context) (Position, error)
}

// Categorized acquisition failures. Each maps to a different remediation,
// so they must stay distinguishable.
var (
	ErrUnsupported      = errors.New("geolocation not supported")
	ErrInsecureOrigin   = errors.New("geolocation blocked on insecure origin")
	ErrPermissionDenied = errors.New("geolocation permission denied")
	ErrTimeout          = errors.New("geolocation timed out")
)

// Location-status indicator values.
const (
	StatusInitializing = "Initializing..."
	StatusAcquiring    = "Acquiring GPS Signal..."
	StatusLocked       = "GPS Locked"
	StatusUnsupported  = "GPS Not Supported"
	StatusBlocked      = "GPS Blocked (HTTP)"
	StatusDenied       = "GPS Permission Denied"
	StatusTimeout      = "GPS Timed Out"
)

// Remediation returns the user-facing message for an acquisition failure.
// An insecure origin and a denied permission get different advice because
// the fix differs: switch to an encrypted origin versus grant permission.
func Remediation(err error) string {
	switch {
	case errors.Is(err, ErrUnsupported):
		return "Your device does not support geolocation."
	case errors.Is(err, ErrInsecureOrigin):
		return "GPS is blocked on insecure (HTTP) connections. Please use an HTTPS origin."
	case errors.Is(err, ErrPermissionDenied):
		return "Please allow location access to submit reports."
	case errors.Is(err, ErrTimeout):
		return "Timed out waiting for a GPS fix. Try again in the open."
	default:
		return "Could not determine your location."
	}
}

// StaticProvider always reports one fixed position. Used when coordinates
// come from the environment instead of a live device.
type StaticProvider struct {
	Position Position
}

func (p StaticProvider) CurrentPosition(ctx context.Context) (Position, error) {
	return p.Position, nil
}

// UnsupportedProvider stands in when no location capability exists at all.
type UnsupportedProvider struct{}

func (UnsupportedProvider) CurrentPosition(ctx context.Context) (Position, error) {
	return Position{}, ErrUnsupported
}
