package serializer

import (
	"encoding/json"
	"errors"
	"math"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodePaginatedBody(t *testing.T) {
	tests := []struct {
		name string
		body interface{}
		want string
	}{
		{
			name: "from defaults to zero",
			body: Body{{Key: "size", Value: 10}, {Key: "query", Value: Body{{Key: "match_all", Value: map[string]interface{}{}}}}},
			want: `{"from":0,"size":10,"query":{"match_all":{}}}`,
		},
		{
			name: "from and size moved first, others keep their order",
			body: Body{
				{Key: "query", Value: Body{{Key: "term", Value: map[string]string{"title": "go"}}}},
				{Key: "size", Value: 5},
				{Key: "sort", Value: []string{"_score"}},
				{Key: "from", Value: 20},
				{Key: "aggs", Value: nil},
			},
			want: `{"from":20,"size":5,"query":{"term":{"title":"go"}},"sort":["_score"],"aggs":null}`,
		},
		{
			name: "plain map with size",
			body: map[string]interface{}{"query": "q", "size": 3, "aggs": 1, "from": 9},
			want: `{"from":9,"size":3,"aggs":1,"query":"q"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := Encode(tt.body)
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(out))
			assert.True(t, json.Valid(out))
		})
	}
}

func TestEncodeIsStable(t *testing.T) {
	a, err := Encode(Body{{Key: "query", Value: "q"}, {Key: "size", Value: 10}, {Key: "from", Value: 0}})
	require.NoError(t, err)
	b, err := Encode(Body{{Key: "from", Value: 0}, {Key: "size", Value: 10}, {Key: "query", Value: "q"}})
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestEncodeWithoutSizeKeepsOrder(t *testing.T) {
	out, err := Encode(Body{{Key: "query", Value: "q"}, {Key: "from", Value: 4}, {Key: "aggs", Value: 1}})
	require.NoError(t, err)
	assert.Equal(t, `{"query":"q","from":4,"aggs":1}`, string(out))

	out, err = Encode(map[string]interface{}{"settings": 1, "mappings": 2})
	require.NoError(t, err)
	assert.Equal(t, `{"mappings":2,"settings":1}`, string(out))

	out, err = Encode(struct {
		Name string `json:"name"`
	}{Name: "records"})
	require.NoError(t, err)
	assert.Equal(t, `{"name":"records"}`, string(out))
}

func TestEncodeRawPassesThrough(t *testing.T) {
	for _, raw := range []string{"raw string", `{"size":10,"query":{}}`, "", "{not json"} {
		out, err := Encode(raw)
		require.NoError(t, err)
		assert.Equal(t, []byte(raw), out)
	}

	out, err := Encode([]byte(`{"b":1,"a":2}`))
	require.NoError(t, err)
	assert.Equal(t, `{"b":1,"a":2}`, string(out))

	out, err = Encode(json.RawMessage(`{"size":1}`))
	require.NoError(t, err)
	assert.Equal(t, `{"size":1}`, string(out))

	out, err = Encode(nil)
	require.NoError(t, err)
	assert.Nil(t, out)
}

func TestEncodeFailures(t *testing.T) {
	ch := make(chan int)

	_, err := Encode(Body{{Key: "size", Value: 1}, {Key: "bad", Value: ch}})
	var serErr *SerializationError
	require.True(t, errors.As(err, &serErr))
	assert.Equal(t, ch, serErr.Value)
	var typeErr *json.UnsupportedTypeError
	assert.True(t, errors.As(err, &typeErr))

	_, err = Encode(Body{{Key: "size", Value: 1}, {Key: "query", Value: Body{{Key: "boost", Value: math.Inf(1)}}}})
	require.True(t, errors.As(err, &serErr))
	assert.Equal(t, math.Inf(1), serErr.Value)

	_, err = Encode(map[string]interface{}{"f": func() {}})
	require.True(t, errors.As(err, &serErr))
	assert.Equal(t, reflect.Func, reflect.TypeOf(serErr.Value).Kind())
	assert.True(t, errors.As(err, &typeErr))
	assert.Contains(t, err.Error(), "unable to serialize")

	_, err = Encode(map[string]interface{}{"query": map[string]interface{}{"script": ch}})
	require.True(t, errors.As(err, &serErr))
	assert.Equal(t, ch, serErr.Value)
}
