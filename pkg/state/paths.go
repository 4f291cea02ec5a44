package state

import (
	"fmt"
	"strconv"
	"strings"
)

func splitPath(path string) ([]string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("%w: empty path", ErrInvalidPath)
	}
	segments := strings.Split(path, ".")
	for _, segment := range segments {
		if strings.TrimSpace(segment) == "" {
			return nil, fmt.Errorf("%w: %q", ErrInvalidPath, path)
		}
	}
	return segments, nil
}

// checkPath reports whether segments can be written without touching a
// repeating group's shape. Every list on the way must be addressed by an
// in-range index; nothing is created or modified.
func checkPath(root map[string]any, segments []string) error {
	var node any = root
	for i := 0; i < len(segments)-1; i++ {
		head, next := segments[i], segments[i+1]
		parent, _ := node.(map[string]any)
		child := parent[head]
		items, isList := child.([]any)
		idx, err := strconv.Atoi(next)
		switch {
		case err == nil:
			if !isList || idx < 0 || idx >= len(items) {
				return fmt.Errorf("%w: %s.%s", ErrIndexOutOfRange, head, next)
			}
			i++
			node = items[idx]
		case isList:
			return fmt.Errorf("%w: %s.%s: list items are addressed by index", ErrInvalidPath, head, next)
		default:
			node = child
		}
	}
	return nil
}

// setPath writes value at segments, creating intermediate maps. Lists are
// never grown here; repeating groups change size only through AppendItem.
// The path is checked first so a rejected write leaves root untouched.
func setPath(root map[string]any, segments []string, value any) error {
	if err := checkPath(root, segments); err != nil {
		return err
	}
	writePath(root, segments, value)
	return nil
}

func writePath(root map[string]any, segments []string, value any) {
	head := segments[0]
	if len(segments) == 1 {
		root[head] = value
		return
	}

	if items, ok := root[head].([]any); ok {
		idx, _ := strconv.Atoi(segments[1])
		if len(segments) == 2 {
			items[idx] = value
			return
		}
		child, ok := items[idx].(map[string]any)
		if !ok {
			child = make(map[string]any)
			items[idx] = child
		}
		writePath(child, segments[2:], value)
		return
	}

	child, ok := root[head].(map[string]any)
	if !ok {
		child = make(map[string]any)
		root[head] = child
	}
	writePath(child, segments[1:], value)
}

func cloneMap(src map[string]any) map[string]any {
	out := make(map[string]any, len(src))
	for k, v := range src {
		out[k] = deepCopy(v)
	}
	return out
}

func deepCopy(value any) any {
	switch typed := value.(type) {
	case map[string]any:
		return cloneMap(typed)
	case []any:
		clone := make([]any, len(typed))
		for i, v := range typed {
			clone[i] = deepCopy(v)
		}
		return clone
	case []string:
		return append([]string(nil), typed...)
	default:
		return typed
	}
}

// reindexKey maps a key under group after the item at removed is dropped.
// It reports false for keys that belonged to the removed item.
func reindexKey(key, group string, removed int) (string, bool) {
	prefix := group + "."
	if !strings.HasPrefix(key, prefix) {
		return key, true
	}
	rest := key[len(prefix):]
	idxPart, tail, _ := strings.Cut(rest, ".")
	idx, err := strconv.Atoi(idxPart)
	if err != nil {
		return key, true
	}
	switch {
	case idx == removed:
		return "", false
	case idx < removed:
		return key, true
	}
	out := prefix + strconv.Itoa(idx-1)
	if tail != "" {
		out += "." + tail
	}
	return out, true
}
