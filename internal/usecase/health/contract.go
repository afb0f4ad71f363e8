package health

import "context"

// Pinger checks cache availability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Checker checks an external provider.
type Checker interface {
	HealthCheck(ctx context.Context) error
}
