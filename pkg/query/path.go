package query

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/st9db/st9.go/pkg/constants"
)

// IndexPath is the scan path of an index query built by FindQuery. The page
// token is not part of it; see WithToken.
func IndexPath(typeName, q string, size int, withQuarantined bool) string {
	p := constants.IndexPath + typeName + q
	if size > 0 {
		p = AddParam(p, "n", strconv.Itoa(size))
	}
	if withQuarantined {
		p = AddRaw(p, constants.IncludeQuarantineParam)
	}
	return p
}

// AllPath scans every entity of the type.
func AllPath(typeName string, size int, withQuarantined bool) string {
	return IndexPath(typeName, "."+constants.AllIndex+"?", size, withQuarantined)
}

func UniquePath(typeName, q string) string {
	return constants.UniquePath + typeName + q
}

func CounterPath(typeName, cq string, size int) string {
	p := constants.CounterPath + typeName + cq
	if size > 0 {
		p = AddParam(p, "n", strconv.Itoa(size))
	}
	return p
}

// WithToken resumes a scan at a page token.
func WithToken(path, token string) string {
	if token == "" {
		return path
	}
	return AddParam(path, "s", token)
}

// AddParam appends key=value, escaping the value.
func AddParam(path, key, value string) string {
	return AddRaw(path, key+"="+url.QueryEscape(value))
}

// AddRaw appends an already encoded parameter.
func AddRaw(path, param string) string {
	switch {
	case !strings.Contains(path, "?"):
		return path + "?" + param
	case strings.HasSuffix(path, "?"), strings.HasSuffix(path, "&"):
		return path + param
	}
	return path + "&" + param
}
