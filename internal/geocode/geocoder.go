// Package geocode assigns coordinates to extracted incident locations:
// canonical address building, persistent cache, Germany bounding-box
// validation and a street-less fallback.
package geocode

import (
	"context"
	"strings"

	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/blaulichtkarte/blaulicht-cli/internal/cache"
	"github.com/blaulichtkarte/blaulicht-cli/internal/config"
	"github.com/blaulichtkarte/blaulicht-cli/internal/model"
	"github.com/blaulichtkarte/blaulicht-cli/internal/resilience"
	provider "github.com/blaulichtkarte/blaulicht-cli/pkg/geocode"
)

// PrecisionOutsideGermany labels coordinates the provider placed outside
// the Germany bounding box; such records keep their location text but no
// coordinates.
const PrecisionOutsideGermany = "outside_germany"

// PrecisionNone marks "tried, found nothing".
const PrecisionNone = "none"

// Query is the location extracted by the model for one incident.
type Query struct {
	Street       string
	HouseNumber  string
	District     string
	City         string
	LocationHint string
	CrossStreet  string
	Bundesland   model.Bundesland
}

// Coordinates is the geocoding outcome attached to an enrichment.
type Coordinates struct {
	Lat       *float64
	Lon       *float64
	Precision string
}

// CachedResult is the on-disk cache value; the zero value is the negative
// sentinel ("tried, found nothing").
type CachedResult struct {
	Lat       *float64 `json:"lat,omitempty"`
	Lon       *float64 `json:"lon,omitempty"`
	Precision string   `json:"precision,omitempty"`
}

// Geocoder resolves incident locations with cache-first lookup.
type Geocoder struct {
	client provider.Client
	cache  *cache.Map[CachedResult]
	bounds *geom.Bounds
	policy resilience.Policy
}

// New creates a Geocoder. The cache is loaded from cachePath.
func New(client provider.Client, cachePath string, cfg config.GeocodeConfig) (*Geocoder, error) {
	c, err := cache.NewMap[CachedResult](cachePath, 200)
	if err != nil {
		return nil, err
	}

	bounds := geom.NewBounds(geom.XY)
	bounds.Set(cfg.MinLon, cfg.MinLat, cfg.MaxLon, cfg.MaxLat)

	return &Geocoder{
		client: client,
		cache:  c,
		bounds: bounds,
		policy: resilience.DefaultPolicy(),
	}, nil
}

// Resolve geocodes q. On a street-level miss or out-of-Germany hit it
// retries once with the street omitted, degrading precision. Every provider
// answer, positive or negative, is cached under its address string.
func (g *Geocoder) Resolve(ctx context.Context, q Query) Coordinates {
	addr := BuildAddress(q)
	if addr == "" {
		return Coordinates{Precision: PrecisionNone}
	}

	coords := g.lookup(ctx, addr)
	if coords.Lat != nil && coords.Precision != PrecisionOutsideGermany {
		return coords
	}

	// Street-level lookups that found nothing usable narrow to city+state.
	if !q.streetLevel() {
		return coords
	}
	fallback := Query{City: q.City, District: q.District, Bundesland: q.Bundesland}
	fbAddr := BuildAddress(fallback)
	if fbAddr == "" || fbAddr == addr {
		return coords
	}

	zap.L().Debug("geocode: narrowing to city-level lookup",
		zap.String("address", addr), zap.String("fallback", fbAddr))

	fbCoords := g.lookup(ctx, fbAddr)
	if fbCoords.Lat == nil {
		// Keep the more specific failure label.
		if coords.Precision == PrecisionOutsideGermany {
			return coords
		}
		return fbCoords
	}
	// City-level hits are never better than approximate.
	if fbCoords.Precision == "rooftop" || fbCoords.Precision == "range" || fbCoords.Precision == "center" {
		fbCoords.Precision = "approximate"
	}
	return fbCoords
}

// lookup consults the cache, then the provider, validates the bbox and
// caches the outcome either way.
func (g *Geocoder) lookup(ctx context.Context, addr string) Coordinates {
	if cached, ok := g.cache.Get(addr); ok {
		if cached.Lat == nil {
			return Coordinates{Precision: PrecisionNone}
		}
		return Coordinates{Lat: cached.Lat, Lon: cached.Lon, Precision: cached.Precision}
	}

	res, err := resilience.Retry(ctx, g.policy, nil, func(ctx context.Context) (*provider.Result, error) {
		return g.client.Geocode(ctx, addr)
	})
	if err != nil {
		zap.L().Warn("geocode: lookup failed", zap.String("address", addr), zap.Error(err))
		// Not cached: a transient provider failure should not poison the
		// negative cache.
		return Coordinates{Precision: PrecisionNone}
	}

	if !res.Matched {
		g.cache.Put(addr, CachedResult{})
		return Coordinates{Precision: PrecisionNone}
	}

	precision := res.Precision
	lat, lon := res.Lat, res.Lon
	if !g.inGermany(lat, lon) {
		precision = PrecisionOutsideGermany
	}

	// Out-of-bounds results are cached too, so the provider is not asked
	// again for the same address.
	g.cache.Put(addr, CachedResult{Lat: &lat, Lon: &lon, Precision: precision})

	return Coordinates{Lat: &lat, Lon: &lon, Precision: precision}
}

func (g *Geocoder) inGermany(lat, lon float64) bool {
	return g.bounds.OverlapsPoint(geom.XY, geom.Coord{lon, lat})
}

// Flush persists the cache.
func (g *Geocoder) Flush() error {
	return g.cache.Flush()
}

func (q Query) streetLevel() bool {
	return q.Street != "" || q.CrossStreet != "" || q.LocationHint != ""
}

// BuildAddress renders the canonical one-line address. Cross-street beats
// location-hint beats bare street; then district, city, Bundesland, Germany.
func BuildAddress(q Query) string {
	var parts []string

	switch {
	case q.CrossStreet != "" && q.Street != "":
		parts = append(parts, q.Street+" & "+q.CrossStreet)
	case q.CrossStreet != "":
		parts = append(parts, q.CrossStreet)
	case q.LocationHint != "":
		parts = append(parts, q.LocationHint)
	case q.Street != "":
		street := q.Street
		if q.HouseNumber != "" {
			street += " " + q.HouseNumber
		}
		parts = append(parts, street)
	}

	if q.District != "" && q.District != q.City {
		parts = append(parts, q.District)
	}
	if q.City != "" {
		parts = append(parts, q.City)
	}
	if q.Bundesland != "" {
		parts = append(parts, bundeslandDisplay(q.Bundesland))
	}

	if len(parts) == 0 {
		return ""
	}
	parts = append(parts, "Germany")
	return strings.Join(parts, ", ")
}

// bundeslandDisplay renders the state tag the way the provider expects it.
func bundeslandDisplay(b model.Bundesland) string {
	switch b {
	case model.BadenWuerttemberg:
		return "Baden-Württemberg"
	case model.Thueringen:
		return "Thüringen"
	case model.MecklenburgVorpommern:
		return "Mecklenburg-Vorpommern"
	case model.NordrheinWestfalen:
		return "Nordrhein-Westfalen"
	case model.RheinlandPfalz:
		return "Rheinland-Pfalz"
	case model.SachsenAnhalt:
		return "Sachsen-Anhalt"
	case model.SchleswigHolstein:
		return "Schleswig-Holstein"
	default:
		// Single-word states capitalize cleanly.
		s := string(b)
		return strings.ToUpper(s[:1]) + s[1:]
	}
}
