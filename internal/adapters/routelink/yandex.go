// Package routelink opens driving routes in an external maps service.
package routelink

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"

	"github.com/samirrijal/parkfinder/internal/core/domain"
)

const yandexMapsURL = "https://yandex.ru/maps/"

// Yandex builds Yandex Maps driving route links. The route starts at the
// user's current position, which the maps service fills in.
type Yandex struct {
	base string
}

// NewYandex creates a Yandex route opener. An empty base uses the public
// yandex.ru maps URL.
func NewYandex(base string) *Yandex {
	if base == "" {
		base = yandexMapsURL
	}
	return &Yandex{base: base}
}

// OpenRoute implements ports.RouteOpener.
func (y *Yandex) OpenRoute(ctx context.Context, dest domain.GeoPoint) (string, error) {
	if !dest.Valid() {
		return "", fmt.Errorf("open route: invalid destination (%v, %v)", dest.Lat, dest.Lng)
	}
	u, err := url.Parse(y.base)
	if err != nil {
		return "", fmt.Errorf("open route: %w", err)
	}

	q := url.Values{}
	q.Set("rtext", "~"+strconv.FormatFloat(dest.Lat, 'f', -1, 64)+","+strconv.FormatFloat(dest.Lng, 'f', -1, 64))
	q.Set("rtt", "auto")
	u.RawQuery = q.Encode()

	link := u.String()
	slog.DebugContext(ctx, "route link opened", "url", link)
	return link, nil
}
