package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestParseJSONConfigSuccessRecv(t *testing.T) {
	path := writeTempRecvConfig(t, `{"listenaddr":":29900","imageout":"out.jpg","metadataout":"out.json","fragmentsize":1200,"sockbuf":4194304,"maxcompleted":4096,"maxopenmessages":64,"staleaftersecs":30,"fatalondeframe":true,"snmplog":"./snmp-20060102.log","snmpperiod":60}`)

	var cfg Config
	if err := parseJSONConfig(&cfg, path); err != nil {
		t.Fatalf("parseJSONConfig returned error: %v", err)
	}

	if cfg.ListenAddr != ":29900" || cfg.ImageOutPath != "out.jpg" || cfg.MetadataOutPath != "out.json" {
		t.Fatalf("unexpected fields: %+v", cfg)
	}
	if cfg.FragmentSize != 1200 || cfg.SockBuf != 4194304 || cfg.MaxCompleted != 4096 {
		t.Fatalf("unexpected numeric fields: %+v", cfg)
	}
	if cfg.MaxOpenMessages != 64 || cfg.StaleAfterSecs != 30 || !cfg.FatalOnDeframe {
		t.Fatalf("unexpected fields: %+v", cfg)
	}
	if cfg.SnmpLog != "./snmp-20060102.log" || cfg.SnmpPeriod != 60 {
		t.Fatalf("unexpected snmp fields: %+v", cfg)
	}
}

func TestParseJSONConfigMissingFileRecv(t *testing.T) {
	var cfg Config
	missing := filepath.Join(t.TempDir(), "missing.json")
	if err := parseJSONConfig(&cfg, missing); err == nil {
		t.Fatalf("parseJSONConfig expected error for missing file")
	}
}

func writeTempRecvConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}
	return path
}
