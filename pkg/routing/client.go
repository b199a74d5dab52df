package routing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/mpapenbr/zenride/log"
	"github.com/mpapenbr/zenride/pkg/geo"
	"github.com/mpapenbr/zenride/pkg/model"
)

const DefaultBaseURL = "https://api.tomtom.com"

// Request describes a single route request against the routing service
type Request struct {
	Origin        geo.Coordinate
	Destination   geo.Coordinate
	AvoidTolls    bool
	AvoidHighways bool
	AvoidAreas    []geo.BoundingBox
}

// Client performs a single route request.
type Client interface {
	CalculateRoute(ctx context.Context, req *Request) ([]model.Route, error)
}

type (
	tomtomResponse struct {
		Routes []tomtomRoute `json:"routes"`
	}
	tomtomRoute struct {
		Summary struct {
			LengthInMeters        float64 `json:"lengthInMeters"`
			TravelTimeInSeconds   float64 `json:"travelTimeInSeconds"`
			TrafficDelayInSeconds float64 `json:"trafficDelayInSeconds"`
		} `json:"summary"`
		Tags []string `json:"tags"`
		Legs []struct {
			Points []struct {
				Latitude  float64 `json:"latitude"`
				Longitude float64 `json:"longitude"`
			} `json:"points"`
		} `json:"legs"`
		Guidance *struct {
			Instructions []tomtomInstruction `json:"instructions"`
		} `json:"guidance"`
	}
	tomtomInstruction struct {
		RouteOffsetInMeters float64 `json:"routeOffsetInMeters"`
		TravelTimeInSeconds float64 `json:"travelTimeInSeconds"`
		PointIndex          int     `json:"pointIndex"`
		InstructionType     string  `json:"instructionType"`
		Street              string  `json:"street"`
		Message             string  `json:"message"`
	}
)

// DecodeResponse converts a calculateRoute response body into routes.
func DecodeResponse(data []byte) ([]model.Route, error) {
	var resp tomtomResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, newError(KindDecode, err)
	}
	if len(resp.Routes) == 0 {
		return nil, newError(KindNoResult, nil)
	}
	ret := make([]model.Route, 0, len(resp.Routes))
	for i := range resp.Routes {
		ret = append(ret, resp.Routes[i].toModel())
	}
	return ret, nil
}

func (r *tomtomRoute) toModel() model.Route {
	route := model.Route{
		ID:                  uuid.NewString(),
		LengthMeters:        r.Summary.LengthInMeters,
		TravelTimeSeconds:   r.Summary.TravelTimeInSeconds,
		TrafficDelaySeconds: r.Summary.TrafficDelayInSeconds,
		Tags:                r.Tags,
		Polyline:            make([]geo.Coordinate, 0),
		Instructions:        make([]model.Instruction, 0),
	}
	for _, leg := range r.Legs {
		for j, p := range leg.Points {
			c := geo.Coordinate{Lat: p.Latitude, Lng: p.Longitude}
			// consecutive legs share their connecting point
			if j == 0 && len(route.Polyline) > 0 && route.Polyline[len(route.Polyline)-1] == c {
				continue
			}
			route.Polyline = append(route.Polyline, c)
		}
	}
	if r.Guidance == nil {
		return route
	}
	for _, inst := range r.Guidance.Instructions {
		n := len(route.Instructions)
		// offsets must be strictly increasing
		if n > 0 && inst.RouteOffsetInMeters <= route.Instructions[n-1].RouteOffsetMeters {
			continue
		}
		text := inst.Message
		if text == "" {
			text = model.DefaultInstructionText
		}
		route.Instructions = append(route.Instructions, model.Instruction{
			RouteOffsetMeters: inst.RouteOffsetInMeters,
			TravelTimeSeconds: inst.TravelTimeInSeconds,
			PolylineIndex:     inst.PointIndex,
			Kind:              model.KindFromRaw(inst.InstructionType),
			RawType:           inst.InstructionType,
			Street:            inst.Street,
			Text:              text,
		})
	}
	return route
}

// HTTPClient talks to a TomTom compatible calculateRoute endpoint
type HTTPClient struct {
	baseURL  string
	apiKey   string
	language string
	http     *http.Client
	l        *log.Logger
}

type HTTPClientOption func(c *HTTPClient)

func WithBaseURL(baseURL string) HTTPClientOption {
	return func(c *HTTPClient) {
		c.baseURL = strings.TrimSuffix(baseURL, "/")
	}
}

func WithAPIKey(key string) HTTPClientOption {
	return func(c *HTTPClient) {
		c.apiKey = key
	}
}

func WithLanguage(lang string) HTTPClientOption {
	return func(c *HTTPClient) {
		c.language = lang
	}
}

func WithHTTPClient(hc *http.Client) HTTPClientOption {
	return func(c *HTTPClient) {
		c.http = hc
	}
}

var _ Client = (*HTTPClient)(nil)

func NewHTTPClient(opts ...HTTPClientOption) *HTTPClient {
	c := &HTTPClient{
		baseURL:  DefaultBaseURL,
		language: "en-US",
		http:     &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
		l:        log.Default().Named("routing.client"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func formatCoord(c geo.Coordinate) string {
	return strconv.FormatFloat(c.Lat, 'f', -1, 64) + "," +
		strconv.FormatFloat(c.Lng, 'f', -1, 64)
}

func (c *HTTPClient) buildURL(req *Request) string {
	q := url.Values{}
	q.Set("key", c.apiKey)
	q.Set("routeType", "fastest")
	q.Set("traffic", "true")
	q.Set("instructionsType", "text")
	q.Set("language", c.language)
	if len(req.AvoidAreas) > 0 {
		areas := make([]string, len(req.AvoidAreas))
		for i := range req.AvoidAreas {
			areas[i] = req.AvoidAreas[i].String()
		}
		q.Set("avoidAreas", strings.Join(areas, "!"))
	}
	avoid := make([]string, 0, 2)
	if req.AvoidTolls {
		avoid = append(avoid, "tollRoads")
	}
	if req.AvoidHighways {
		avoid = append(avoid, "motorways")
	}
	if len(avoid) > 0 {
		q.Set("avoid", strings.Join(avoid, ","))
	}
	return fmt.Sprintf("%s/routing/1/calculateRoute/%s:%s/json?%s",
		c.baseURL, formatCoord(req.Origin), formatCoord(req.Destination), q.Encode())
}

func (c *HTTPClient) CalculateRoute(ctx context.Context, req *Request) ([]model.Route, error) {
	if c.apiKey == "" {
		return nil, newError(KindConfig, errors.New("missing routing api key"))
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.buildURL(req), http.NoBody)
	if err != nil {
		return nil, newError(KindConfig, err)
	}
	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, newError(KindNetwork, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		c.l.Error("routing request failed", log.Int("status", resp.StatusCode))
		return nil, newError(KindNetwork, fmt.Errorf("unexpected status %d", resp.StatusCode))
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, newError(KindNetwork, err)
	}
	return DecodeResponse(data)
}

// StaticClient returns the routes of a canned response for every request.
// Used for offline routes and demos.
type StaticClient struct {
	data []byte
}

var _ Client = (*StaticClient)(nil)

func NewStaticClient(data []byte) *StaticClient {
	return &StaticClient{data: data}
}

func LoadStaticClient(path string) (*StaticClient, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return NewStaticClient(data), nil
}

func (c *StaticClient) CalculateRoute(ctx context.Context, req *Request) ([]model.Route, error) {
	if err := ctx.Err(); err != nil {
		return nil, newError(KindNetwork, err)
	}
	return DecodeResponse(c.data)
}
