package xtream

import (
	"encoding/json"
	"strconv"
	"strings"
)

// flexString renders a backend field that may arrive as JSON string or
// number. Returns "" for anything else.
func flexString(v interface{}) string {
	switch x := v.(type) {
	case string:
		return strings.TrimSpace(x)
	case float64:
		if x == float64(int64(x)) {
			return strconv.FormatInt(int64(x), 10)
		}
		return strconv.FormatFloat(x, 'f', -1, 64)
	case json.Number:
		return x.String()
	}
	return ""
}

// flexInt parses a string-or-number field as int, 0 on failure.
func flexInt(v interface{}) int {
	switch x := v.(type) {
	case float64:
		return int(x)
	case string:
		n, _ := strconv.Atoi(strings.TrimSpace(x))
		return n
	}
	return 0
}

type rawCategory struct {
	CategoryID   interface{} `json:"category_id"`
	CategoryName string      `json:"category_name"`
}

// decodeCategoryTable accepts the two table shapes panels emit (an array of
// records, or an object keyed by category id) and builds an id to name lookup.
// Records with a missing id or name are skipped, not errors.
func decodeCategoryTable(body []byte) (map[string]string, error) {
	out := make(map[string]string)
	var list []rawCategory
	if err := json.Unmarshal(body, &list); err == nil {
		for _, c := range list {
			addCategory(out, c)
		}
		return out, nil
	}
	var keyed map[string]rawCategory
	if err := json.Unmarshal(body, &keyed); err != nil {
		return nil, err
	}
	for id, c := range keyed {
		if c.CategoryID == nil {
			c.CategoryID = id
		}
		addCategory(out, c)
	}
	return out, nil
}

func addCategory(out map[string]string, c rawCategory) {
	id := flexString(c.CategoryID)
	name := strings.TrimSpace(c.CategoryName)
	if id == "" || name == "" {
		return
	}
	out[id] = name
}
