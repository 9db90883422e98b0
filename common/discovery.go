// Copyright © 2018 Barthelemy Vessemont
// GNU General Public License version 3

package common

import (
	"sort"
	"strings"
	"time"

	"github.com/criteo-forks/essync/prometheus"
	"github.com/hashicorp/consul/api"
	log "github.com/sirupsen/logrus"
)

func clusterNameFromTags(serviceTags []string) string {
	for _, tag := range serviceTags {
		splitted := strings.SplitN(tag, "-", 2)
		if splitted[0] == "cluster_name" && len(splitted) == 2 {
			return splitted[1]
		}
	}
	return ""
}

func schemeFromTags(serviceTags []string) string {
	scheme := "http"
	for _, tag := range serviceTags {
		if tag == "https" {
			scheme = tag
			break
		}
	}

	return scheme
}

// DiscoverNodesForService lists the instances of a Consul service, sorted by
// node name so seed order is stable between refreshes.
func DiscoverNodesForService(consulTarget string, serviceName string) ([]Node, error) {
	start := time.Now()

	consulConfig := api.DefaultConfig()
	consulConfig.Address = consulTarget
	consul, err := api.NewClient(consulConfig)
	if err != nil {
		log.Debug("Consul Connection failed: ", err.Error())
		prometheus.ErrorsCount.Inc()
		return nil, err
	}

	catalogServices, _, err := consul.Catalog().Service(
		serviceName, "",
		&api.QueryOptions{AllowStale: true, RequireConsistent: false, UseCache: true},
	)
	if err != nil {
		log.Error("Consul Discovery failed: ", err.Error())
		prometheus.ErrorsCount.Inc()
		return nil, err
	}

	nodeList := nodesFromCatalog(catalogServices)
	log.Debug(len(nodeList), " nodes found for service ", serviceName)

	prometheus.ConsulDiscoveryDurationSummary.Observe(float64(time.Since(start).Nanoseconds()))
	return nodeList, nil
}

func nodesFromCatalog(catalogServices []*api.CatalogService) []Node {
	var nodeList []Node
	for _, svc := range catalogServices {
		var addr string = svc.Address
		if svc.ServiceAddress != "" {
			addr = svc.ServiceAddress
		}

		log.Debug("Service discovered: ", svc.Node, " (", addr, ":", svc.ServicePort, ")")
		nodeList = append(nodeList, Node{
			Name:    svc.Node,
			Address: addr,
			Port:    svc.ServicePort,
			Scheme:  schemeFromTags(svc.ServiceTags),
			Cluster: clusterNameFromTags(svc.ServiceTags),
		})
	}
	sort.Slice(nodeList, func(i, j int) bool { return nodeList[i].Name < nodeList[j].Name })
	return nodeList
}

// DiscoverSeeds returns the descriptors of a Consul service instances, to be
// used as sniffing seeds.
func DiscoverSeeds(consulTarget string, serviceName string) ([]Descriptor, error) {
	nodes, err := DiscoverNodesForService(consulTarget, serviceName)
	if err != nil {
		return nil, err
	}

	seeds := make([]Descriptor, 0, len(nodes))
	for _, node := range nodes {
		seeds = append(seeds, node.Descriptor())
	}
	return seeds, nil
}
