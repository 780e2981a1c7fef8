package rpc

import (
	"fmt"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/rhuss/workbridge/pkg/config"
)

const (
	methodToolsCall = "tools/call"
	methodToolsList = "tools/list"
)

// Shim strips or rewrites request fields a target is known to reject.
// For tools/call the paths are relative to the tool arguments.
type Shim struct {
	Method string
	Tool   string
	Drop   []string
	Set    map[string]any
}

// ShimTable is the ordered list of shims for one target.
type ShimTable []Shim

// NewShimTable builds a table from configured quirks.
func NewShimTable(quirks []config.QuirkConfig) ShimTable {
	table := make(ShimTable, 0, len(quirks))
	for _, q := range quirks {
		table = append(table, Shim{
			Method: q.Method,
			Tool:   q.Tool,
			Drop:   q.Drop,
			Set:    q.Set,
		})
	}
	return table
}

// Apply rewrites the serialized params for a call to method. It returns
// the rewritten params and the paths that were changed.
func (t ShimTable) Apply(method string, params []byte) ([]byte, []string, error) {
	if len(t) == 0 || len(params) == 0 {
		return params, nil, nil
	}

	var tool string
	if method == methodToolsCall {
		tool = gjson.GetBytes(params, "name").String()
	}

	var changed []string
	for _, s := range t {
		prefix, ok := s.match(method, tool)
		if !ok {
			continue
		}

		for _, path := range s.Drop {
			full := prefix + path
			if !gjson.GetBytes(params, full).Exists() {
				continue
			}
			out, err := sjson.DeleteBytes(params, full)
			if err != nil {
				return nil, nil, fmt.Errorf("dropping %s: %w", full, err)
			}
			params = out
			changed = append(changed, full)
		}

		for path, value := range s.Set {
			full := prefix + path
			out, err := sjson.SetBytes(params, full, value)
			if err != nil {
				return nil, nil, fmt.Errorf("setting %s: %w", full, err)
			}
			params = out
			changed = append(changed, full)
		}
	}

	return params, changed, nil
}

// match reports whether the shim applies and the path prefix its paths are
// relative to.
func (s Shim) match(method, tool string) (string, bool) {
	if s.Method != "" && s.Method != method {
		return "", false
	}
	if method == methodToolsCall {
		if s.Tool != "" && s.Tool != tool {
			return "", false
		}
		return "arguments.", true
	}
	if s.Tool != "" {
		return "", false
	}
	return "", true
}
