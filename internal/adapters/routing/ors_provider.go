package routing

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"rider-tracking-service/internal/adapters/cache"
	"rider-tracking-service/internal/domain"
	"rider-tracking-service/internal/platform/httpx"
	"rider-tracking-service/internal/platform/obs"
)

const defaultBaseURL = "https://api.openrouteservice.org"

// ORSProvider implements RouteProvider using the OpenRouteService directions API.
//
// Paths are looked up in the optional Redis cache before calling ORS and
// written back after a successful call. The provider is safe for concurrent use.
type ORSProvider struct {
	http    *httpx.Client
	apiKey  string
	baseURL string
	profile string
	backoff time.Duration
	cache   *cache.RedisRouteCache
	log     zerolog.Logger
}

// ErrNoRoute means ORS could not connect the waypoints, usually because a
// point is too far from any road. Retrying the same request will not help.
var ErrNoRoute = errors.New("no route between waypoints")

type ORSOption func(*ORSProvider)

func WithBaseURL(u string) ORSOption {
	return func(o *ORSProvider) { o.baseURL = strings.TrimRight(u, "/") }
}

func WithProfile(p string) ORSOption {
	return func(o *ORSProvider) { o.profile = p }
}

func WithRouteCache(c *cache.RedisRouteCache) ORSOption {
	return func(o *ORSProvider) { o.cache = c }
}

func WithLogger(log zerolog.Logger) ORSOption {
	return func(o *ORSProvider) { o.log = log }
}

func WithBackoff(d time.Duration) ORSOption {
	return func(o *ORSProvider) { o.backoff = d }
}

func NewORSProvider(apiKey string, opts ...ORSOption) (*ORSProvider, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("ORS api key is empty")
	}

	o := &ORSProvider{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		profile: "driving-car",
		backoff: 200 * time.Millisecond,
		log:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	o.http = httpx.New(
		httpx.WithRetry(3, o.backoff),
		httpx.WithHeader("Authorization", o.apiKey),
		httpx.WithHeader("Accept", "application/json, application/geo+json"),
		httpx.WithErrorMessage(orsErrorMessage),
	)

	return o, nil
}

type directionsRequest struct {
	Coordinates [][]float64 `json:"coordinates"`
}

type directionsResponse struct {
	Features []struct {
		Geometry struct {
			Coordinates [][]float64 `json:"coordinates"`
		} `json:"geometry"`
		Properties struct {
			Summary struct {
				Distance float64 `json:"distance"`
				Duration float64 `json:"duration"`
			} `json:"summary"`
		} `json:"properties"`
	} `json:"features"`
}

// Directions computes a path through the ordered waypoints.
func (o *ORSProvider) Directions(
	ctx context.Context,
	waypoints []domain.Coordinates,
) (_ domain.Path, err error) {
	defer obs.Time(ctx, "ors.Directions")(&err)

	if len(waypoints) < 2 {
		return domain.Path{}, errors.New("directions: at least two waypoints are required")
	}
	for i, w := range waypoints {
		if !w.Valid() {
			return domain.Path{}, fmt.Errorf("directions: waypoint %d is not finite", i)
		}
	}

	if o.cache != nil {
		path, ok, err := o.cache.Get(ctx, o.profile, waypoints)
		if err != nil {
			o.log.Warn().Err(err).Msg("route cache read failed")
		} else if ok {
			return path, nil
		}
	}

	path, err := o.fetchDirections(ctx, waypoints)
	if err != nil {
		return domain.Path{}, fmt.Errorf("directions: %w", err)
	}

	if o.cache != nil {
		if err := o.cache.Put(ctx, o.profile, waypoints, path); err != nil {
			o.log.Warn().Err(err).Msg("route cache write failed")
		}
	}

	return path, nil
}

func (o *ORSProvider) fetchDirections(ctx context.Context, waypoints []domain.Coordinates) (domain.Path, error) {
	endpoint := fmt.Sprintf("%s/v2/directions/%s/geojson", o.baseURL, o.profile)

	coords := make([][]float64, 0, len(waypoints))
	for _, w := range waypoints {
		coords = append(coords, w.CoordsToList())
	}

	payload, err := json.Marshal(directionsRequest{Coordinates: coords})
	if err != nil {
		return domain.Path{}, fmt.Errorf("marshal directions request: %w", err)
	}

	resp, err := o.http.DoWithRetry(ctx, "ors directions", func() (*http.Request, error) {
		return o.http.NewRequest(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	})
	if err != nil {
		var se *domain.ServerError
		if errors.As(err, &se) && se.StatusCode == http.StatusNotFound {
			return domain.Path{}, fmt.Errorf("%w: %w", ErrNoRoute, err)
		}
		return domain.Path{}, fmt.Errorf("directions request failed: %w", err)
	}
	defer resp.Body.Close()

	var dr directionsResponse
	if err := json.NewDecoder(resp.Body).Decode(&dr); err != nil {
		return domain.Path{}, fmt.Errorf("decode directions response: %w", err)
	}

	if len(dr.Features) == 0 {
		return domain.Path{}, fmt.Errorf("%w: empty feature collection", ErrNoRoute)
	}

	feature := dr.Features[0]
	path := domain.Path{
		Points: make([]domain.Coordinates, 0, len(feature.Geometry.Coordinates)),
		// ORS returns float metrics; round to nearest integer for domain consistency.
		DistanceMeters:  int(math.Round(feature.Properties.Summary.Distance)),
		DurationSeconds: int(math.Round(feature.Properties.Summary.Duration)),
	}
	for _, c := range feature.Geometry.Coordinates {
		if len(c) < 2 {
			return domain.Path{}, fmt.Errorf("invalid coordinate format in route geometry")
		}
		path.Points = append(path.Points, domain.Coordinates{Lng: c[0], Lat: c[1]})
	}

	return path, nil
}

// orsErrorBody is the error envelope ORS sends, e.g.
// {"error": {"code": 2010, "message": "Could not find routable point ..."}}.
type orsErrorBody struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func orsErrorMessage(code int, body []byte) string {
	var eb orsErrorBody
	if err := json.Unmarshal(body, &eb); err == nil && strings.TrimSpace(eb.Error.Message) != "" {
		return fmt.Sprintf("ors %d: %s", eb.Error.Code, strings.TrimSpace(eb.Error.Message))
	}
	return httpx.ErrorMessage(code, body)
}
