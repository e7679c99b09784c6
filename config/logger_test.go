package config

import "testing"

func TestInitLoggerLevels(t *testing.T) {
	tests := []struct {
		name  string
		level string
	}{
		{name: "debug", level: "debug"},
		{name: "mixed_case", level: "WARN"},
		{name: "padded", level: " error "},
		{name: "unknown_falls_back_to_info", level: "verbose"},
		{name: "empty_falls_back_to_info", level: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := InitLogger(tt.level)
			if err != nil {
				t.Fatalf("InitLogger(%q) error = %v", tt.level, err)
			}
			if logger == nil {
				t.Fatalf("InitLogger(%q) returned nil logger", tt.level)
			}
		})
	}

	Cleanup()
}
