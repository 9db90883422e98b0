package common

import (
	"testing"

	"github.com/hashicorp/consul/api"
	"github.com/stretchr/testify/assert"
)

func TestNodesFromCatalog(t *testing.T) {
	nodes := nodesFromCatalog([]*api.CatalogService{
		{Node: "es-b", Address: "10.0.0.2", ServicePort: 9200, ServiceTags: []string{"cluster_name-logs"}},
		{Node: "es-a", Address: "10.0.0.1", ServiceAddress: "10.1.0.1", ServicePort: 9243, ServiceTags: []string{"https", "cluster_name-logs"}},
	})

	assert.Equal(t, []Node{
		{Name: "es-a", Address: "10.1.0.1", Port: 9243, Cluster: "logs", Scheme: "https"},
		{Name: "es-b", Address: "10.0.0.2", Port: 9200, Cluster: "logs", Scheme: "http"},
	}, nodes)
}

func TestNodeDescriptor(t *testing.T) {
	assert.Equal(t,
		Descriptor{Host: "10.1.0.1", Port: 9243, Scheme: "http", UseTLS: true},
		Node{Address: "10.1.0.1", Port: 9243, Scheme: "https"}.Descriptor())
	assert.Equal(t,
		Descriptor{Host: "10.0.0.2", Port: 9200, Scheme: "http"},
		Node{Address: "10.0.0.2", Port: 9200, Scheme: "http"}.Descriptor())
}

func TestTags(t *testing.T) {
	assert.Equal(t, "", clusterNameFromTags([]string{"https", "cluster_name"}))
	assert.Equal(t, "a-b", clusterNameFromTags([]string{"cluster_name-a-b"}))
	assert.Equal(t, "http", schemeFromTags(nil))
}
