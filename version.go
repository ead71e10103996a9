package redline

import _ "embed"

// Version is the release version of redline.
//
//go:embed VERSION
var Version string
