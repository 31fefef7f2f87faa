package main

import (
	"encoding/json"
	"os"
)

// Config for the receiver.
type Config struct {
	ListenAddr      string `json:"listenaddr"`
	ImageOutPath    string `json:"imageout"`
	MetadataOutPath string `json:"metadataout"`
	FragmentSize    int    `json:"fragmentsize"`
	SockBuf         int    `json:"sockbuf"`
	MaxCompleted    int    `json:"maxcompleted"`
	MaxOpenMessages int    `json:"maxopenmessages"`
	StaleAfterSecs  int    `json:"staleaftersecs"`
	FatalOnDeframe  bool   `json:"fatalondeframe"`
	Log             string `json:"log"`
	LogLevel        string `json:"loglevel"`
	MetricsAddr     string `json:"metricsaddr"`
	SnmpLog         string `json:"snmplog"`
	SnmpPeriod      int    `json:"snmpperiod"`
}

func parseJSONConfig(config *Config, path string) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return json.NewDecoder(file).Decode(config)
}
