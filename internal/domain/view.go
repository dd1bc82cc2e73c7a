package domain

import (
	"fmt"
	"maps"
	"slices"
)

// Appended to view paths without an extension unless configured otherwise
const DEFAULT_EXTENSION = ".tmpl"

// Source designates which path of the view cache satisfied a request
type Source string

const (
	SourceCache      Source = "CACHE"
	SourceInflight   Source = "INFLIGHT"
	SourceFilesystem Source = "FILESYSTEM"
)

// Params are the user supplied values handed to the renderer
type Params map[string]any

// Names the renderer gives meaning to. Passing them as params is considered an accident.
var reservedParams = map[string]struct{}{
	"basedir":                {},
	"cache":                  {},
	"compileDebug":           {},
	"debug":                  {},
	"doctype":                {},
	"filename":               {},
	"filters":                {},
	"globals":                {},
	"inlineRuntimeFunctions": {},
	"name":                   {},
	"pretty":                 {},
	"self":                   {},
}

func IsReservedParam(name string) bool {
	_, ok := reservedParams[name]
	return ok
}

// CheckReserved returns an error wrapping ErrReservedParameter if any of the params use a reserved name
func CheckReserved(params Params) error {
	// Sorted so the reported key is deterministic
	for _, name := range slices.Sorted(maps.Keys(params)) {
		if IsReservedParam(name) {
			return fmt.Errorf("%w: params contained reserved key \"%s\"", ErrReservedParameter, name)
		}
	}
	return nil
}

// MergeParams returns a new Params containing base overridden by overrides
func MergeParams(base, overrides Params) Params {
	merged := make(Params, len(base)+len(overrides))
	maps.Copy(merged, base)
	maps.Copy(merged, overrides)
	return merged
}
