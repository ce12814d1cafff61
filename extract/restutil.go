package extract

import (
	"context"
	"encoding/json"
	"net/url"
	"strconv"

	"github.com/rudderlabs/sfmc-inventory/restclient"
)

// restListEnvelope is the {"items":[...]} shape every REST collection
// endpoint walked by paginateJSON returns its page in.
type restListEnvelope struct {
	Items []json.RawMessage `json:"items"`
}

// paginateJSON drives a $page/$pageSize REST collection endpoint to
// completion, decoding each item into a map and handing it to onItem.
func paginateJSON(ctx context.Context, c *restclient.Client, path string, pageSize int, onItem func(map[string]interface{})) error {
	fetch := func(ctx context.Context, page, size int) ([]json.RawMessage, error) {
		q := url.Values{
			"$page":     []string{strconv.Itoa(page)},
			"$pageSize": []string{strconv.Itoa(size)},
		}
		resp, err := c.Request(ctx, "GET", path, q, nil)
		if err != nil {
			return nil, err
		}
		if !resp.OK {
			return nil, nil
		}
		var env restListEnvelope
		if err := unmarshalRaw(resp.Data, &env); err != nil {
			return nil, err
		}
		return env.Items, nil
	}

	return restclient.Paginate(ctx, pageSize, fetch, func(p restclient.Page) error {
		for _, raw := range p.Items {
			var m map[string]interface{}
			if err := unmarshalRaw(raw, &m); err != nil {
				continue
			}
			onItem(m)
		}
		return nil
	})
}

func unmarshalRaw(raw json.RawMessage, out interface{}) error {
	return json.Unmarshal(raw, out)
}

func asInt(v interface{}) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	case json.Number:
		i, err := n.Int64()
		return int(i), err == nil
	default:
		return 0, false
	}
}

func asSlice(v interface{}) []interface{} {
	s, ok := v.([]interface{})
	if !ok {
		return nil
	}
	return s
}
