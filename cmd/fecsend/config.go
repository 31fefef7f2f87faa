package main

import (
	"encoding/json"
	"os"
)

// Config for the sender. Field names and the parseJSONConfig helper
// mirror server/config.go in shape: flat, json-tagged, with a file
// override layered on top of the CLI flags.
type Config struct {
	RemoteAddr       string  `json:"remoteaddr"`
	ImagePath        string  `json:"image"`
	MetadataPath     string  `json:"metadata"`
	MessageID        uint32  `json:"messageid"`
	FragmentSize     int     `json:"fragmentsize"`
	TargetRedundancy float64 `json:"redundancy"`
	MaxN             int     `json:"maxn"`
	MinK             int     `json:"mink"`
	PacingMicros     int     `json:"pacingmicros"`
	DrainMillis      int     `json:"drainmillis"`
	Log              string  `json:"log"`
	LogLevel         string  `json:"loglevel"`
	MetricsAddr      string  `json:"metricsaddr"`
}

func parseJSONConfig(config *Config, path string) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return json.NewDecoder(file).Decode(config)
}
