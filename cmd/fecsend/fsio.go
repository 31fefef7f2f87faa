package main

import (
	"os"

	"github.com/xtaci/fecbridge/internal/sinks"
)

// readFileSource adapts a file path to a sinks.ImageSource/MetadataSource:
// the core never sees the path, only the bytes os.ReadFile returns.
func readFileSource(path string) sinks.ImageSource {
	return func() ([]byte, error) {
		return os.ReadFile(path)
	}
}
