package facets

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func decode(t *testing.T, raw string) interface{} {
	t.Helper()
	payload, err := decodePayload([]byte(raw))
	if err != nil {
		t.Fatalf("bad fixture %s: %v", raw, err)
	}
	return payload
}

func TestNormalize_Shapes(t *testing.T) {
	acme := []Option{{ID: 3, Label: "Acme Co"}, {ID: 5, Label: "Globex"}}

	tests := []struct {
		name     string
		raw      string
		endpoint string
		expected []Option
	}{
		{
			name:     "bare array",
			raw:      `[{"id":3,"label":"Acme Co"},{"id":5,"label":"Globex"}]`,
			expected: acme,
		},
		{
			name:     "data envelope",
			raw:      `{"data":[{"id":3,"label":"Acme Co"},{"id":5,"label":"Globex"}],"total":2}`,
			expected: acme,
		},
		{
			name:     "name instead of label",
			raw:      `[{"id":3,"name":"Acme Co"},{"id":5,"name":"Globex"}]`,
			expected: acme,
		},
		{
			name:     "first array value",
			raw:      `{"meta":{"count":2},"items":[{"id":3,"label":"Acme Co"},{"id":5,"label":"Globex"}]}`,
			expected: acme,
		},
		{
			name:     "property named after endpoint",
			raw:      `{"brand":{"3":"Acme Co","5":"Globex"},"status":"ok"}`,
			endpoint: "http://localhost:8080/api/facets/brand?q=ac",
			expected: acme,
		},
		{
			name:     "id to label map",
			raw:      `{"5":"Globex","3":"Acme Co"}`,
			expected: acme,
		},
		{
			name:     "malformed entries dropped",
			raw:      `[{"id":3,"label":"Acme Co"},{"id":"x","label":"Bad"},{"label":"No id"},{"id":7},{"id":1.5,"label":"Fraction"},"junk",{"id":5,"label":"Globex"}]`,
			expected: acme,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizeFor(decode(t, tt.raw), tt.endpoint))
		})
	}
}

func TestNormalize_Totality(t *testing.T) {
	inputs := []interface{}{
		nil,
		[]interface{}{},
		map[string]interface{}{"data": []interface{}{}},
		map[string]interface{}{},
		map[string]interface{}{"foo": "bar"},
		map[string]interface{}{"data": "not a list"},
		"plain string",
		json.Number("42"),
		true,
		[]interface{}{nil, 1, "x"},
	}

	for _, in := range inputs {
		out := Normalize(in)
		assert.NotNil(t, out, "input %#v", in)
		assert.Empty(t, out, "input %#v", in)
	}
}

func TestNormalize_EnvelopeIdempotence(t *testing.T) {
	payloads := []string{
		`[{"id":3,"label":"Acme Co"},{"id":5,"label":"Globex"}]`,
		`{"5":"Globex","3":"Acme Co"}`,
		`{"items":[{"id":9,"title":"Vistaline"}]}`,
		`null`,
	}

	for _, raw := range payloads {
		once := Normalize(decode(t, raw))
		wrapped := Normalize(map[string]interface{}{"data": once})
		assert.Equal(t, once, Normalize(once), raw)
		assert.Equal(t, once, wrapped, raw)

		encoded, err := json.Marshal(map[string]interface{}{"data": once})
		assert.NoError(t, err)
		assert.Equal(t, once, NormalizeJSON(encoded, ""), raw)
	}
}

func TestNormalizeJSON_Undecodable(t *testing.T) {
	assert.Equal(t, []Option{}, NormalizeJSON([]byte(`{"data": [`), ""))
	assert.Equal(t, []Option{}, NormalizeJSON(nil, ""))
}

func TestLastSegment(t *testing.T) {
	assert.Equal(t, "brand", lastSegment("/api/facets/brand"))
	assert.Equal(t, "brand", lastSegment("http://host/api/facets/brand/?q=x"))
	assert.Equal(t, "material", lastSegment("material"))
}
