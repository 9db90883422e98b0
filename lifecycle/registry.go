// Copyright © 2018 Barthelemy Vessemont
// GNU General Public License version 3

package lifecycle

import (
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"

	"github.com/valyala/fastjson"
)

// MappingRegistry supplies index bodies (settings and mappings) by index
// name. A missing entry is not an error.
type MappingRegistry interface {
	MappingBody(index string) ([]byte, bool, error)
}

func mappingFile(index string) string {
	return index + ".json"
}

// DirRegistry looks for <index>.json in its directories, in order.
type DirRegistry struct {
	dirs []string
}

func NewDirRegistry(dirs ...string) *DirRegistry {
	return &DirRegistry{dirs: dirs}
}

func (r *DirRegistry) MappingBody(index string) ([]byte, bool, error) {
	if index == "" || strings.ContainsAny(index, `/\`) || strings.HasPrefix(index, ".") {
		return nil, false, fmt.Errorf("invalid index name %q", index)
	}

	for _, dir := range r.dirs {
		path := filepath.Join(dir, mappingFile(index))
		body, err := ioutil.ReadFile(path)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return nil, false, err
		}
		if err := fastjson.ValidateBytes(body); err != nil {
			return nil, false, fmt.Errorf("invalid mapping %s: %w", path, err)
		}
		return body, true, nil
	}
	return nil, false, nil
}

// MapRegistry is an in-memory registry keyed by file name ("<index>.json").
type MapRegistry map[string][]byte

func (r MapRegistry) MappingBody(index string) ([]byte, bool, error) {
	body, ok := r[mappingFile(index)]
	return body, ok, nil
}
