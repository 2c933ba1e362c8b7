package config

import _ "embed"

// Default is the embedded baseline configuration. It is loaded first;
// an on-disk conf.yaml and LUMI_* environment variables override it.
//
//go:embed conf.yaml
var Default []byte
