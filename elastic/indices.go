// Copyright © 2018 Barthelemy Vessemont
// GNU General Public License version 3

package elastic

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	log "github.com/sirupsen/logrus"
)

// DeleteIndex removes an index. With ignoreNotFound a missing index is not
// an error.
func (c *Client) DeleteIndex(ctx context.Context, name string, ignoreNotFound bool) error {
	_, err := c.Perform(ctx, http.MethodDelete, "/"+url.PathEscape(name), nil)
	if err != nil && ignoreNotFound && IsNotFound(err) {
		log.Debug("Index ", name, " does not exist, nothing to delete")
		return nil
	}
	return err
}

// CreateIndex creates an index with the given settings and mappings. An
// empty body creates it with the cluster defaults.
func (c *Client) CreateIndex(ctx context.Context, name string, body []byte) error {
	var payload interface{}
	if len(body) > 0 {
		payload = json.RawMessage(body)
	}
	_, err := c.Perform(ctx, http.MethodPut, "/"+url.PathEscape(name), payload)
	return err
}

func (c *Client) IndexExists(ctx context.Context, name string) (bool, error) {
	_, err := c.Perform(ctx, http.MethodHead, "/"+url.PathEscape(name), nil)
	if IsNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
