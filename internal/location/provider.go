package location

import (
	"context"

	"wikipocket/internal/model"
)

// Provider supplies the host's coordinates. The repository never calls this
// directly; the CLI and HTTP layers consult it and pass coordinates into
// the nearby-articles lookup.
type Provider interface {
	HasPermission() bool
	// CurrentLocation is a single-shot fetch. It reports false on
	// permission denial, provider failure, or caller cancellation.
	CurrentLocation(ctx context.Context) (*model.Coordinates, bool)
	// Cleanup releases any outstanding request.
	Cleanup()
}

// StaticProvider serves a fixed coordinate pair from configuration, the
// headless-host stand-in for a device GPS.
type StaticProvider struct {
	coords  model.Coordinates
	enabled bool
	done    chan struct{}
}

func NewStaticProvider(lat, lon float64, enabled bool) *StaticProvider {
	return &StaticProvider{
		coords:  model.Coordinates{Lat: lat, Lon: lon},
		enabled: enabled,
		done:    make(chan struct{}),
	}
}

func (p *StaticProvider) HasPermission() bool {
	return p.enabled
}

func (p *StaticProvider) CurrentLocation(ctx context.Context) (*model.Coordinates, bool) {
	if !p.enabled {
		return nil, false
	}

	select {
	case <-ctx.Done():
		return nil, false
	case <-p.done:
		return nil, false
	default:
	}

	coords := p.coords
	return &coords, true
}

func (p *StaticProvider) Cleanup() {
	select {
	case <-p.done:
	default:
		close(p.done)
	}
}
