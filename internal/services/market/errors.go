package market

import (
	"fmt"
	"strings"

	"github.com/ternarybob/tadawul/internal/models"
)

// allFailed wraps ErrAllSourcesFailed with the per-symbol reasons.
func allFailed(omitted []models.Omission) error {
	if len(omitted) == 0 {
		return ErrAllSourcesFailed
	}
	parts := make([]string, 0, len(omitted))
	for _, o := range omitted {
		parts = append(parts, o.Symbol+": "+o.Reason)
	}
	return fmt.Errorf("%w: %s", ErrAllSourcesFailed, strings.Join(parts, "; "))
}
