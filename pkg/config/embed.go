package config

import _ "embed"

// defaultConfig ships a workable rule set so a collection can run without
// any configuration file.
//
//go:embed filehound.yaml
var defaultConfig []byte
