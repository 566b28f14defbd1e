package index

import "sort"

// Limits for front-matter keys carried into vector metadata.
const (
	MaxExtraKeys     = 32
	MaxExtraKeyBytes = 64
	MaxExtraValueLen = 512
	MaxExtraListLen  = 32
)

// reservedKeys already have a fixed home in EntryMetadata.
var reservedKeys = map[string]struct{}{
	"path":       {},
	"title":      {},
	"content":    {},
	"tags":       {},
	"createdAt":  {},
	"modifiedAt": {},
}

// extraMetadata copies pass-through front-matter into vector metadata.
// Only strings, booleans, numbers and string lists are kept; entries over
// the size limits are dropped. Keys are visited in sorted order so the
// same front-matter always yields the same subset.
func extraMetadata(fm map[string]any) map[string]any {
	if len(fm) == 0 {
		return nil
	}
	keys := make([]string, 0, len(fm))
	for k := range fm {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make(map[string]any)
	for _, k := range keys {
		if len(out) == MaxExtraKeys {
			break
		}
		if _, ok := reservedKeys[k]; ok || k == "" || len(k) > MaxExtraKeyBytes {
			continue
		}
		if v, ok := extraValue(fm[k]); ok {
			out[k] = v
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func extraValue(v any) (any, bool) {
	switch val := v.(type) {
	case string:
		return val, len(val) <= MaxExtraValueLen
	case bool, int, int64, float64:
		return val, true
	case []string:
		return stringList(val)
	case []any:
		list := make([]string, 0, len(val))
		for _, item := range val {
			s, ok := item.(string)
			if !ok {
				return nil, false
			}
			list = append(list, s)
		}
		return stringList(list)
	default:
		return nil, false
	}
}

func stringList(list []string) (any, bool) {
	if len(list) > MaxExtraListLen {
		return nil, false
	}
	for _, s := range list {
		if len(s) > MaxExtraValueLen {
			return nil, false
		}
	}
	out := make([]string, len(list))
	copy(out, list)
	return out, true
}
