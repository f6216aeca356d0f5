package repository

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Patch is an atomic partial update of one document.
type Patch struct {
	Set         map[string]any
	Unset       []string
	Push        map[string]any // appends one element to the array at each path
	Inc         map[string]int64
	CurrentDate []string // paths set to the store's clock
	Upsert      bool
}

func (p Patch) IsEmpty() bool {
	return len(p.Set) == 0 && len(p.Unset) == 0 && len(p.Push) == 0 &&
		len(p.Inc) == 0 && len(p.CurrentDate) == 0
}

// Merge folds o into p. Later values win on the same path.
func (p Patch) Merge(o Patch) Patch {
	out := Patch{Upsert: p.Upsert || o.Upsert}
	if len(p.Set)+len(o.Set) > 0 {
		out.Set = make(map[string]any, len(p.Set)+len(o.Set))
		for k, v := range p.Set {
			out.Set[k] = v
		}
		for k, v := range o.Set {
			out.Set[k] = v
		}
	}
	if len(p.Push)+len(o.Push) > 0 {
		out.Push = make(map[string]any, len(p.Push)+len(o.Push))
		for k, v := range p.Push {
			out.Push[k] = v
		}
		for k, v := range o.Push {
			out.Push[k] = v
		}
	}
	if len(p.Inc)+len(o.Inc) > 0 {
		out.Inc = make(map[string]int64, len(p.Inc)+len(o.Inc))
		for k, v := range p.Inc {
			out.Inc[k] += v
		}
		for k, v := range o.Inc {
			out.Inc[k] += v
		}
	}
	out.Unset = append(append([]string(nil), p.Unset...), o.Unset...)
	out.CurrentDate = append(append([]string(nil), p.CurrentDate...), o.CurrentDate...)
	return out
}

// normalize converts v into the generic JSON shape (maps, slices, float64,
// string, bool, nil) the memory and Postgres stores keep documents in.
func normalize(v any) (any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func normalizeDoc(v any) (map[string]any, error) {
	n, err := normalize(v)
	if err != nil {
		return nil, err
	}
	doc, ok := n.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("document must encode to an object, got %T", n)
	}
	return doc, nil
}

// decodeDoc copies a generic document into out.
func decodeDoc(doc any, out any) error {
	b, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, out)
}

func splitPath(path string) []string {
	return strings.Split(path, ".")
}

func lookup(doc map[string]any, path string) (any, bool) {
	var cur any = doc
	for _, part := range splitPath(path) {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// parentOf walks to the map holding the last path element, creating
// intermediate objects as needed.
func parentOf(doc map[string]any, path string, create bool) (map[string]any, string, error) {
	parts := splitPath(path)
	cur := doc
	for _, part := range parts[:len(parts)-1] {
		next, ok := cur[part]
		if !ok || next == nil {
			if !create {
				return nil, "", nil
			}
			m := map[string]any{}
			cur[part] = m
			cur = m
			continue
		}
		m, ok := next.(map[string]any)
		if !ok {
			return nil, "", fmt.Errorf("path %q: %q is not an object", path, part)
		}
		cur = m
	}
	return cur, parts[len(parts)-1], nil
}

// applyPatch mutates doc in place with Mongo-compatible update semantics.
func applyPatch(doc map[string]any, p Patch, now time.Time) error {
	for path, v := range p.Set {
		nv, err := normalize(v)
		if err != nil {
			return fmt.Errorf("set %s: %w", path, err)
		}
		parent, key, err := parentOf(doc, path, true)
		if err != nil {
			return err
		}
		parent[key] = nv
	}
	for _, path := range p.Unset {
		parent, key, err := parentOf(doc, path, false)
		if err != nil {
			return err
		}
		if parent != nil {
			delete(parent, key)
		}
	}
	for path, v := range p.Push {
		nv, err := normalize(v)
		if err != nil {
			return fmt.Errorf("push %s: %w", path, err)
		}
		parent, key, err := parentOf(doc, path, true)
		if err != nil {
			return err
		}
		switch cur := parent[key].(type) {
		case nil:
			parent[key] = []any{nv}
		case []any:
			parent[key] = append(cur, nv)
		default:
			return fmt.Errorf("push %s: field is %T, not an array", path, cur)
		}
	}
	for path, delta := range p.Inc {
		parent, key, err := parentOf(doc, path, true)
		if err != nil {
			return err
		}
		switch cur := parent[key].(type) {
		case nil:
			parent[key] = float64(delta)
		case float64:
			parent[key] = cur + float64(delta)
		default:
			return fmt.Errorf("inc %s: field is %T, not a number", path, cur)
		}
	}
	for _, path := range p.CurrentDate {
		parent, key, err := parentOf(doc, path, true)
		if err != nil {
			return err
		}
		parent[key] = now.UTC().Format(time.RFC3339Nano)
	}
	return nil
}

func docVersion(doc map[string]any) int64 {
	if v, ok := doc[VersionField].(float64); ok {
		return int64(v)
	}
	return 0
}

func bumpVersion(doc map[string]any) {
	doc[VersionField] = float64(docVersion(doc) + 1)
}
