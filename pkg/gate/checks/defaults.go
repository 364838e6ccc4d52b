package checks

import "github.com/Ledgerline-Labs/greenlight/pkg/gate"

// Default returns the four standard dimensions in report order.
func Default(org string) []gate.Check {
	return []gate.Check{
		NewConsistency(),
		NewReversibility(org),
		NewReproducibility(),
		NewProvability(),
	}
}
