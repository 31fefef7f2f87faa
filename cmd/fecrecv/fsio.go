package main

import "os"

// writeFileSink adapts a file path to the sinks.ImageSink/MetadataSink
// shape (both are func([]byte) error): the core never sees the path,
// only the bytes it hands to this closure on message completion. The
// unnamed return type lets the same helper satisfy either named sink
// type at the call site.
func writeFileSink(path string) func([]byte) error {
	return func(b []byte) error {
		return os.WriteFile(path, b, 0644)
	}
}
