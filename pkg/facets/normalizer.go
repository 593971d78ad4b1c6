package facets

import (
	"bytes"
	"encoding/json"
	"math"
	"path"
	"sort"
	"strconv"
	"strings"
)

// labelKeys are tried in order when an option record has no "label"
var labelKeys = []string{"label", "name", "title", "description"}

// shapeMatcher recognizes one payload shape. ok=false passes the payload on
// to the next matcher.
type shapeMatcher struct {
	name  string
	match func(payload interface{}, endpoint string) (options []Option, ok bool)
}

var shapeMatchers []shapeMatcher

func init() {
	shapeMatchers = []shapeMatcher{
		{name: "sequence", match: matchSequence},
		{name: "data_envelope", match: matchDataEnvelope},
		{name: "first_array", match: matchFirstArray},
		{name: "endpoint_property", match: matchEndpointProperty},
		{name: "id_label_map", match: matchIDLabelMap},
	}
}

// Normalize coerces a decoded payload into options. It never fails: payloads
// in no recognized shape yield an empty slice.
func Normalize(payload interface{}) []Option {
	return NormalizeFor(payload, "")
}

// NormalizeFor is Normalize with the request endpoint (URL or path) available,
// so a payload keyed by the endpoint's last segment can be unwrapped.
func NormalizeFor(payload interface{}, endpoint string) []Option {
	for _, m := range shapeMatchers {
		if options, ok := m.match(payload, endpoint); ok {
			return options
		}
	}
	return []Option{}
}

// NormalizeJSON decodes raw and normalizes it. Undecodable input is empty.
func NormalizeJSON(raw []byte, endpoint string) []Option {
	payload, err := decodePayload(raw)
	if err != nil {
		return []Option{}
	}
	return NormalizeFor(payload, endpoint)
}

func decodePayload(raw []byte) (interface{}, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var payload interface{}
	if err := dec.Decode(&payload); err != nil {
		return nil, err
	}
	return payload, nil
}

func matchSequence(payload interface{}, _ string) ([]Option, bool) {
	switch v := payload.(type) {
	case []Option:
		out := make([]Option, 0, len(v))
		for _, o := range v {
			if o.Label != "" {
				out = append(out, o)
			}
		}
		return out, true
	case []interface{}:
		out := make([]Option, 0, len(v))
		for _, item := range v {
			if o, ok := toOption(item); ok {
				out = append(out, o)
			}
		}
		return out, true
	}
	return nil, false
}

func matchDataEnvelope(payload interface{}, endpoint string) ([]Option, bool) {
	m, ok := payload.(map[string]interface{})
	if !ok {
		return nil, false
	}
	data, ok := m["data"]
	if !ok {
		return nil, false
	}
	return matchSequence(data, endpoint)
}

func matchFirstArray(payload interface{}, endpoint string) ([]Option, bool) {
	m, ok := payload.(map[string]interface{})
	if !ok {
		return nil, false
	}
	for _, k := range sortedKeys(m) {
		if options, ok := matchSequence(m[k], endpoint); ok {
			return options, true
		}
	}
	return nil, false
}

func matchEndpointProperty(payload interface{}, endpoint string) ([]Option, bool) {
	m, ok := payload.(map[string]interface{})
	if !ok || endpoint == "" {
		return nil, false
	}
	segment := lastSegment(endpoint)
	inner, ok := m[segment]
	if !ok || inner == nil {
		return nil, false
	}
	// The endpoint is consumed so the nested payload cannot loop on it.
	return NormalizeFor(inner, ""), true
}

// matchIDLabelMap converts {"3": "Acme Co", "5": "Globex"} into options ordered by id.
func matchIDLabelMap(payload interface{}, _ string) ([]Option, bool) {
	m, ok := payload.(map[string]interface{})
	if !ok {
		return nil, false
	}
	out := make([]Option, 0, len(m))
	for k, v := range m {
		id, err := strconv.ParseInt(strings.TrimSpace(k), 10, 64)
		if err != nil {
			continue
		}
		label, ok := v.(string)
		if !ok || label == "" {
			continue
		}
		out = append(out, Option{ID: id, Label: label})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, true
}

func toOption(item interface{}) (Option, bool) {
	switch v := item.(type) {
	case Option:
		return v, v.Label != ""
	case map[string]interface{}:
		id, ok := toID(v["id"])
		if !ok {
			return Option{}, false
		}
		for _, k := range labelKeys {
			if label, ok := v[k].(string); ok && label != "" {
				return Option{ID: id, Label: label}, true
			}
		}
	}
	return Option{}, false
}

func toID(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case json.Number:
		id, err := n.Int64()
		return id, err == nil
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) || n != math.Trunc(n) {
			return 0, false
		}
		return int64(n), true
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	}
	return 0, false
}

func lastSegment(endpoint string) string {
	if i := strings.IndexAny(endpoint, "?#"); i >= 0 {
		endpoint = endpoint[:i]
	}
	return path.Base(strings.TrimRight(endpoint, "/"))
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
