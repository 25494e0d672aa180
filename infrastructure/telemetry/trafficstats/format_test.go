package trafficstats

import "testing"

func TestFormat(t *testing.T) {
	tests := []struct {
		name string
		got  string
		want string
	}{
		{"rate in KiB", FormatRate(1200), "1.2 KiB/s"},
		{"small rate", FormatRate(100), "100 B/s"},
		{"total in MiB", FormatTotal(3 * 1024 * 1024), "3.0 MiB"},
		{"small total", FormatTotal(500), "500 B"},
		{"largest unit", FormatTotal(5 << 50), "5120.0 TiB"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Fatalf("got %q, want %q", tt.got, tt.want)
			}
		})
	}
}
