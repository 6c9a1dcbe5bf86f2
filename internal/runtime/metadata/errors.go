package metadata

import "errors"

var errNilMetadata = errors.New("routeflow: metadata map is nil")
