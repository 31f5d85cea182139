package usecases

import (
	"context"
	"errors"

	"github.com/samirrijal/parkfinder/internal/core/domain"
)

// statusLabel is the metrics label for a data source error.
func statusLabel(err error) string {
	if err == nil {
		return ""
	}
	var te *domain.TransportError
	if errors.As(err, &te) {
		return string(te.Status)
	}
	if errors.Is(err, context.Canceled) {
		return "canceled"
	}
	return "unknown"
}
