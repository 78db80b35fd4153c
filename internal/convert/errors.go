package convert

import "errors"

// ErrNoManifestSource is returned when Input supplies neither a manifest
// URL nor already-fetched manifest bytes.
var ErrNoManifestSource = errors.New("convert: input has no manifest URL or manifest data")
