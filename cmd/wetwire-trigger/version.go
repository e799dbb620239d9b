package main

import "runtime/debug"

// version is stamped by release builds:
//
//	go build -ldflags "-X main.version=v0.3.0" ./cmd/wetwire-trigger
var version = ""

// getVersion returns the stamped version, the module version of a
// "go install github.com/lex00/wetwire-s3trigger-go/cmd/wetwire-trigger@vX"
// build, or "dev" for local builds.
func getVersion() string {
	if version != "" {
		return version
	}
	if info, ok := debug.ReadBuildInfo(); ok {
		if v := info.Main.Version; v != "" && v != "(devel)" {
			return v
		}
	}
	return "dev"
}
