package record

import (
	"fmt"
	"log/slog"
)

// Advisor reports relationship reads that bypassed eager loading. It only
// observes: it never changes control flow or results, and it only speaks in
// development mode.
type Advisor struct {
	enabled bool
	logger  *slog.Logger
}

func NewAdvisor(enabled bool, logger *slog.Logger) *Advisor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Advisor{enabled: enabled, logger: logger}
}

// Observe is called once per lazy fallback query. Cached reads don't reach it.
func (a *Advisor) Observe(className, relName string) {
	if a == nil || !a.enabled {
		return
	}
	a.logger.Warn("lazy relationship load (possible N+1)",
		"model", className,
		"relationship", relName,
		"hint", fmt.Sprintf("eager load with Includes(%q)", relName),
	)
}
