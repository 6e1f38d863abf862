package config

import (
	"reflect"
	"strings"
)

// normalizeLegacyConfigMap maps legacy YAML keys (without underscores, or
// from a prior flat layout) to the canonical snake_case keys defined by
// mapstructure tags. It mutates and returns the provided map.
func normalizeLegacyConfigMap(data map[string]interface{}) map[string]interface{} {
	if data == nil {
		return nil
	}
	applyLegacyPathMappings(data)
	return normalizeMapForStruct(data, reflect.TypeOf(Config{}))
}

// applyLegacyPathMappings migrates config keys from a flat pre-nested-struct
// layout: early builds accepted "cache_dir" and "max_retained_jobs" at the
// top level before retention settings were grouped under "retention".
func applyLegacyPathMappings(data map[string]interface{}) {
	if val, ok := data["cache_dir"]; ok {
		if _, exists := data["cache_root"]; !exists {
			data["cache_root"] = val
		}
		delete(data, "cache_dir")
	}

	if val, ok := data["max_retained_jobs"]; ok {
		retention := ensureMap(data, "retention")
		if _, exists := retention["max_jobs"]; !exists {
			retention["max_jobs"] = val
		}
		delete(data, "max_retained_jobs")
	}
}

func ensureMap(data map[string]interface{}, key string) map[string]interface{} {
	if existing, ok := data[key].(map[string]interface{}); ok {
		return existing
	}
	next := make(map[string]interface{})
	data[key] = next
	return next
}

func normalizeMapForStruct(data map[string]interface{}, t reflect.Type) map[string]interface{} {
	if data == nil {
		return nil
	}
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return data
	}

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		name := canonicalTagName(field)
		if name == "" || name == "-" {
			continue
		}

		legacy := strings.ReplaceAll(name, "_", "")
		if legacy != name {
			if val, ok := data[legacy]; ok {
				if _, exists := data[name]; !exists {
					data[name] = val
				}
				delete(data, legacy)
			}
		}

		if val, ok := data[name]; ok {
			data[name] = normalizeValueForType(val, field.Type)
		}
	}

	return data
}

func normalizeValueForType(value interface{}, t reflect.Type) interface{} {
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}

	switch t.Kind() {
	case reflect.Struct:
		if m, ok := value.(map[string]interface{}); ok {
			return normalizeMapForStruct(m, t)
		}
	case reflect.Slice:
		if t.Elem().Kind() == reflect.Struct || (t.Elem().Kind() == reflect.Pointer && t.Elem().Elem().Kind() == reflect.Struct) {
			if list, ok := value.([]interface{}); ok {
				out := make([]interface{}, 0, len(list))
				for _, item := range list {
					out = append(out, normalizeValueForType(item, t.Elem()))
				}
				return out
			}
		}
	}

	return value
}

func canonicalTagName(field reflect.StructField) string {
	if tag := field.Tag.Get("mapstructure"); tag != "" {
		return strings.Split(tag, ",")[0]
	}
	if tag := field.Tag.Get("yaml"); tag != "" {
		return strings.Split(tag, ",")[0]
	}
	return strings.ToLower(field.Name)
}
