// Copyright © 2018 Barthelemy Vessemont
// GNU General Public License version 3

package common

import (
	"net"
	"net/url"
	"strconv"
	"strings"
)

// Descriptor is the canonical description of a search node to connect to.
// A zero Port means the transport default applies. When UseTLS is set,
// Scheme holds the plaintext scheme and the transport negotiates TLS itself.
type Descriptor struct {
	Host        string
	Port        int
	Scheme      string
	UseTLS      bool
	Credentials string
	PathPrefix  string
}

func (d Descriptor) IsZero() bool {
	return d == Descriptor{}
}

// URL renders the descriptor back into a host string that Normalize maps
// to the same descriptor.
func (d Descriptor) URL() string {
	if d.IsZero() {
		return ""
	}

	var b strings.Builder
	switch {
	case d.UseTLS:
		b.WriteString("https://")
	case d.Scheme != "":
		b.WriteString(d.Scheme)
		b.WriteString("://")
	}

	if d.Credentials != "" {
		user, pass := d.BasicAuth()
		b.WriteString(url.UserPassword(user, pass).String())
		b.WriteString("@")
	}

	host := d.Host
	if d.Port != 0 {
		b.WriteString(net.JoinHostPort(host, strconv.Itoa(d.Port)))
	} else {
		if strings.Contains(host, ":") {
			host = "[" + host + "]"
		}
		b.WriteString(host)
	}

	b.WriteString(d.PathPrefix)
	return b.String()
}

// BasicAuth splits the credentials into user and password.
func (d Descriptor) BasicAuth() (string, string) {
	parts := strings.SplitN(d.Credentials, ":", 2)
	if len(parts) == 1 {
		return parts[0], ""
	}
	return parts[0], parts[1]
}

func (d Descriptor) String() string {
	if d.IsZero() {
		return "<default>"
	}
	u := d
	if u.Credentials != "" {
		u.Credentials = "xxx:xxx"
	}
	return u.URL()
}

// DiscoveredNode is one node reported by a cluster topology query.
type DiscoveredNode struct {
	Name      string
	Host      string
	Candidate Descriptor
}

// Node is a search service instance registered in Consul.
type Node struct {
	Name    string
	Address string
	Port    int
	Cluster string
	Scheme  string
}

func (n Node) Descriptor() Descriptor {
	d := Descriptor{Host: n.Address, Port: n.Port}
	if n.Scheme == "https" {
		d.UseTLS = true
		d.Scheme = "http"
	} else if n.Scheme != "" {
		d.Scheme = n.Scheme
	}
	return d
}
