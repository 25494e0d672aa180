package mode_selection

import (
	"errors"
	"meshvpn/domain/mode"
	"testing"
)

func TestArgsAppMode_Mode(t *testing.T) {
	tests := []struct {
		name           string
		arguments      []string
		wantMode       mode.Mode
		expectedErrMsg string
		errTarget      any
	}{
		{
			name:           "empty arguments slice",
			arguments:      []string{},
			wantMode:       mode.Unknown,
			expectedErrMsg: "missing execution binary path as first argument",
			errTarget:      new(mode.InvalidExecPathProvided),
		},
		{
			name:           "no mode provided",
			arguments:      []string{"program"},
			wantMode:       mode.Unknown,
			expectedErrMsg: "no mode provided",
			errTarget:      new(mode.NoModeProvided),
		},
		{
			name:      "node mode ('n')",
			arguments: []string{"program", "n"},
			wantMode:  mode.Node,
		},
		{
			name:      "node mode long form",
			arguments: []string{"program", "node", "-config", "/tmp/node.json"},
			wantMode:  mode.Node,
		},
		{
			name:      "keygen mode ('k')",
			arguments: []string{"program", "k"},
			wantMode:  mode.Keygen,
		},
		{
			name:      "version with extra spaces and mixed case",
			arguments: []string{"program", " Version "},
			wantMode:  mode.Version,
		},
		{
			name:      "version flag",
			arguments: []string{"program", "--version"},
			wantMode:  mode.Version,
		},
		{
			name:           "invalid mode",
			arguments:      []string{"program", "x"},
			wantMode:       mode.Unknown,
			expectedErrMsg: "x is not a valid mode",
			errTarget:      new(mode.InvalidModeProvided),
		},
		{
			name:           "blank mode",
			arguments:      []string{"program", "  "},
			wantMode:       mode.Unknown,
			expectedErrMsg: "empty string is not a valid mode",
			errTarget:      new(mode.InvalidModeProvided),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotMode, err := NewArgsAppMode(tt.arguments).Mode()

			if gotMode != tt.wantMode {
				t.Errorf("Mode() gotMode = %v, want %v", gotMode, tt.wantMode)
			}
			if (err != nil) != (tt.expectedErrMsg != "") {
				t.Fatalf("Mode() error = %v, want %q", err, tt.expectedErrMsg)
			}
			if err == nil {
				return
			}
			if err.Error() != tt.expectedErrMsg {
				t.Errorf("Mode() error message = %q, want %q", err.Error(), tt.expectedErrMsg)
			}
			if !errors.As(err, tt.errTarget) {
				t.Errorf("expected error type %T, got %T", tt.errTarget, err)
			}
		})
	}
}
