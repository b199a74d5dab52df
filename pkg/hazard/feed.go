package hazard

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ohler55/ojg/jp"
	"github.com/ohler55/ojg/oj"
	"gopkg.in/yaml.v3"

	"github.com/mpapenbr/zenride/log"
	"github.com/mpapenbr/zenride/pkg/geo"
	"github.com/mpapenbr/zenride/pkg/model"
)

type Format int

const (
	FormatJSON Format = iota
	FormatYAML
)

var (
	ErrInvalidID    = errors.New("hazard id must be an integer or a string")
	ErrInvalidEntry = errors.New("invalid hazard entry")
	ErrNoEntries    = errors.New("no hazard entries found in feed")
)

// FormatFromPath derives the feed format from the file extension
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// LoadFile reads and decodes the hazard feed at path.
func LoadFile(path, selector string) ([]model.Hazard, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return DecodeFeed(data, FormatFromPath(path), selector)
}

// DecodeFeed decodes a hazard feed.
// Supported shapes are an object with a "cameras" array or a top level array.
// If selector is not empty it is used as JSONPath expression to locate the
// entries. Entries which cannot be decoded are skipped and logged.
func DecodeFeed(data []byte, format Format, selector string) ([]model.Hazard, error) {
	var doc any
	var err error
	switch format {
	case FormatYAML:
		err = yaml.Unmarshal(data, &doc)
	default:
		doc, err = oj.Parse(data)
	}
	if err != nil {
		return nil, fmt.Errorf("decode hazard feed: %w", err)
	}
	entries, err := selectEntries(doc, selector)
	if err != nil {
		return nil, err
	}
	l := log.Default().Named("hazard")
	ret := make([]model.Hazard, 0, len(entries))
	for i, e := range entries {
		h, err := decodeEntry(e)
		if err != nil {
			l.Warn("skipping hazard entry", log.Int("idx", i), log.ErrorField(err))
			continue
		}
		ret = append(ret, h)
	}
	return ret, nil
}

func selectEntries(doc any, selector string) ([]any, error) {
	if selector != "" {
		x, err := jp.ParseString(selector)
		if err != nil {
			return nil, fmt.Errorf("invalid selector %q: %w", selector, err)
		}
		res := x.Get(doc)
		if len(res) == 1 {
			if arr, ok := res[0].([]any); ok {
				return arr, nil
			}
		}
		return res, nil
	}
	switch v := doc.(type) {
	case []any:
		return v, nil
	case map[string]any:
		if arr, ok := v["cameras"].([]any); ok {
			return arr, nil
		}
	}
	return nil, ErrNoEntries
}

//nolint:cyclop // by design
func decodeEntry(e any) (model.Hazard, error) {
	m, ok := e.(map[string]any)
	if !ok {
		return model.Hazard{}, ErrInvalidEntry
	}
	id, err := normalizeID(m["id"])
	if err != nil {
		return model.Hazard{}, err
	}
	lat, okLat := toFloat(m["lat"])
	lng, okLng := toFloat(m["lng"])
	if !okLat || !okLng {
		return model.Hazard{}, fmt.Errorf("%w: id %s has no valid location",
			ErrInvalidEntry, id)
	}
	limit, _ := toFloat(m["speed_limit_mph"])
	h := model.Hazard{
		ID:            id,
		SpeedLimitMph: int(math.Round(limit)),
		Location:      geo.Coordinate{Lat: lat, Lng: lng},
	}
	h.Street, _ = m["street"].(string)
	h.FromCrossStreet, _ = m["from_cross_street"].(string)
	h.ToCrossStreet, _ = m["to_cross_street"].(string)
	return h, nil
}

// normalizeID converts integer or string ids to their string form
func normalizeID(v any) (string, error) {
	switch id := v.(type) {
	case string:
		if id == "" {
			return "", ErrInvalidID
		}
		return id, nil
	case int:
		return strconv.Itoa(id), nil
	case int64:
		return strconv.FormatInt(id, 10), nil
	case uint64:
		return strconv.FormatUint(id, 10), nil
	case float64:
		if id != math.Trunc(id) {
			return "", ErrInvalidID
		}
		return strconv.FormatInt(int64(id), 10), nil
	default:
		return "", ErrInvalidID
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	default:
		return 0, false
	}
}
