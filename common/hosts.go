// Copyright © 2018 Barthelemy Vessemont
// GNU General Public License version 3

package common

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/spf13/cast"
)

const defaultTLSPort = 443

// HostParseError reports a configured host that could not be turned into a
// Descriptor.
type HostParseError struct {
	Raw interface{}
	Err error
}

func (e *HostParseError) Error() string {
	return fmt.Sprintf("invalid host %q: %v", fmt.Sprint(e.Raw), e.Err)
}

func (e *HostParseError) Unwrap() error {
	return e.Err
}

// Normalize turns configured hosts into descriptors. It accepts nil, a single
// host (string, Descriptor or a map of descriptor fields) or a list of them.
// An absent input (nil, "" or an empty list) yields one zero Descriptor,
// leaving everything to the transport defaults.
func Normalize(raw interface{}) ([]Descriptor, error) {
	if isAbsent(raw) {
		return []Descriptor{{}}, nil
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
		return append([]Descriptor(nil), v...), nil
	default:
		specs = []interface{}{v}
	}

	descriptors := make([]Descriptor, 0, len(specs))
	for _, spec := range specs {
		d, err := normalizeOne(spec)
		if err != nil {
			return nil, err
		}
		descriptors = append(descriptors, d)
	}
	return descriptors, nil
}

// isAbsent reports whether a hosts setting carries nothing, as an unset
// environment variable or an empty YAML list does.
func isAbsent(raw interface{}) bool {
	switch v := raw.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(v) == ""
	case []interface{}:
		return len(v) == 0
	case []string:
		return len(v) == 0
	case []Descriptor:
		return len(v) == 0
	}
	return false
}

func normalizeOne(spec interface{}) (Descriptor, error) {
	switch v := spec.(type) {
	case Descriptor:
		return v, nil
	case *Descriptor:
		if v == nil {
			return Descriptor{}, nil
		}
		return *v, nil
	case string:
		return parseHost(v)
	case map[string]string:
		m := make(map[string]interface{}, len(v))
		for k, val := range v {
			m[k] = val
		}
		return descriptorFromMap(m)
	case map[string]interface{}, map[interface{}]interface{}:
		return descriptorFromMap(v)
	}
	return Descriptor{}, &HostParseError{Raw: spec, Err: fmt.Errorf("unsupported host type %T", spec)}
}

func parseHost(raw string) (Descriptor, error) {
	s := raw
	if !strings.Contains(s, "://") {
		s = "//" + s
	}

	u, err := url.Parse(s)
	if err != nil {
		return Descriptor{}, &HostParseError{Raw: raw, Err: err}
	}

	if u.Hostname() == "" {
		return Descriptor{}, &HostParseError{Raw: raw, Err: errors.New("missing host name")}
	}

	d := Descriptor{Host: u.Hostname()}
	if p := u.Port(); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil || port > 65535 {
			return Descriptor{}, &HostParseError{Raw: raw, Err: fmt.Errorf("invalid port %q", p)}
		}
		d.Port = port
	}

	if u.Scheme == "https" {
		d.UseTLS = true
		d.Scheme = "http"
		if d.Port == 0 {
			d.Port = defaultTLSPort
		}
	} else if u.Scheme != "" {
		d.Scheme = u.Scheme
	}

	if u.User != nil {
		pass, _ := u.User.Password()
		d.Credentials = u.User.Username() + ":" + pass
	}

	if u.Path != "" && u.Path != "/" {
		d.PathPrefix = u.Path
	}
	return d, nil
}

// descriptorFromMap accepts the structured host form found in YAML configs,
// e.g. {host: es1, port: 9200, use_ssl: true, http_auth: "user:pass"}.
func descriptorFromMap(spec interface{}) (Descriptor, error) {
	m, err := cast.ToStringMapE(spec)
	if err != nil {
		return Descriptor{}, &HostParseError{Raw: spec, Err: err}
	}

	var d Descriptor
	for key, value := range m {
		switch strings.ToLower(key) {
		case "host":
			d.Host = cast.ToString(value)
		case "port":
			port, err := cast.ToIntE(value)
			if err != nil || port < 0 || port > 65535 {
				return Descriptor{}, &HostParseError{Raw: spec, Err: fmt.Errorf("invalid port %v", value)}
			}
			d.Port = port
		case "scheme":
			d.Scheme = cast.ToString(value)
		case "use_ssl", "use_tls":
			tls, err := cast.ToBoolE(value)
			if err != nil {
				return Descriptor{}, &HostParseError{Raw: spec, Err: err}
			}
			d.UseTLS = tls
		case "http_auth", "credentials":
			d.Credentials = cast.ToString(value)
		case "url_prefix", "path_prefix":
			d.PathPrefix = cast.ToString(value)
		default:
			return Descriptor{}, &HostParseError{Raw: spec, Err: fmt.Errorf("unknown host field %q", key)}
		}
	}

	if d.Scheme == "https" {
		d.UseTLS = true
	}
	if d.UseTLS {
		d.Scheme = "http"
		if d.Port == 0 {
			d.Port = defaultTLSPort
		}
	}
	if d.PathPrefix == "/" {
		d.PathPrefix = ""
	}
	return d, nil
}
