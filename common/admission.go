// Copyright © 2018 Barthelemy Vessemont
// GNU General Public License version 3

package common

import (
	"strings"
)

// NodeFilter decides, for every node reported by a sniff, whether requests
// may be routed to it. A nil result excludes the node.
type NodeFilter interface {
	Admit(node DiscoveredNode) *Descriptor
}

// AcceptAll admits every node with the descriptor built from the topology.
type AcceptAll struct{}

func (AcceptAll) Admit(node DiscoveredNode) *Descriptor {
	d := node.Candidate
	return &d
}

type allowEntry struct {
	text string
	raw  interface{}
}

// AllowList restricts routing to the configured hosts. A node is admitted
// when its reported name appears inside an entry; the first matching entry
// wins and its own descriptor (scheme, credentials, prefix) is used.
type AllowList struct {
	entries []allowEntry
}

// NewAllowList validates every configured host up front so admission never
// fails later. nil, "" or an empty list admits every node.
func NewAllowList(raw interface{}) (*AllowList, error) {
	a := &AllowList{}
	if isAbsent(raw) {
		return a, nil
	}

	var specs []interface{}
	switch v := raw.(type) {
	case []interface{}:
		specs = v
	case []string:
		for _, s := range v {
			specs = append(specs, s)
		}
	case []Descriptor:
		for _, d := range v {
			specs = append(specs, d)
		}
	default:
		specs = []interface{}{v}
	}

	for _, spec := range specs {
		descriptors, err := Normalize(spec)
		if err != nil {
			return nil, err
		}
		text, ok := spec.(string)
		if !ok {
			text = descriptors[0].URL()
		}
		a.entries = append(a.entries, allowEntry{text: text, raw: spec})
	}
	return a, nil
}

func (a *AllowList) Len() int {
	if a == nil {
		return 0
	}
	return len(a.entries)
}

func (a *AllowList) Admit(node DiscoveredNode) *Descriptor {
	if a.Len() == 0 {
		return AcceptAll{}.Admit(node)
	}
	if node.Name == "" {
		return nil
	}

	for _, entry := range a.entries {
		if !strings.Contains(entry.text, node.Name) {
			continue
		}
		descriptors, err := Normalize(entry.raw)
		if err != nil || len(descriptors) == 0 {
			return nil
		}
		d := descriptors[0]
		return &d
	}
	return nil
}
