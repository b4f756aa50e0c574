package strata

import (
	_ "embed"
	"strings"
)

//go:embed VERSION
var rawVersion string

// Version is the release of the strata module.
var Version = strings.TrimSpace(rawVersion)
