package lifecycle

import (
	"io/ioutil"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeMapping(t *testing.T, dir, name, body string) {
	require.NoError(t, ioutil.WriteFile(filepath.Join(dir, name), []byte(body), 0644))
}

func TestDirRegistry(t *testing.T) {
	first, second := t.TempDir(), t.TempDir()
	writeMapping(t, first, "records.json", `{"mappings":{"properties":{"title":{"type":"text"}}}}`)
	writeMapping(t, second, "records.json", `{"mappings":{}}`)
	writeMapping(t, second, "authors.json", `{"settings":{"number_of_shards":1}}`)
	writeMapping(t, second, "broken.json", `{"settings":`)

	registry := NewDirRegistry(first, second)

	body, found, err := registry.MappingBody("records")
	require.NoError(t, err)
	assert.True(t, found)
	assert.JSONEq(t, `{"mappings":{"properties":{"title":{"type":"text"}}}}`, string(body))

	body, found, err = registry.MappingBody("authors")
	require.NoError(t, err)
	assert.True(t, found)
	assert.JSONEq(t, `{"settings":{"number_of_shards":1}}`, string(body))

	body, found, err = registry.MappingBody("holdings")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, body)

	_, _, err = registry.MappingBody("broken")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken.json")

	for _, name := range []string{"", "../records", ".hidden", `a\b`} {
		_, _, err = registry.MappingBody(name)
		assert.Error(t, err, name)
	}
}

func TestDirRegistryWithoutDirs(t *testing.T) {
	_, found, err := NewDirRegistry().MappingBody("records")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestMapRegistry(t *testing.T) {
	registry := MapRegistry{"records.json": []byte(`{}`)}

	body, found, err := registry.MappingBody("records")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, `{}`, string(body))

	_, found, _ = registry.MappingBody("records.json")
	assert.False(t, found)
}
