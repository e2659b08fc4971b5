package gpu

import (
	"strings"
	"testing"
)

func TestShadersCompile(t *testing.T) {
	tests := []struct {
		name   string
		source string
	}{
		{"resampling", resamplingShaderSource},
		{"streamline", streamlineShaderSource},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !strings.Contains(tt.source, "fn vs_main") || !strings.Contains(tt.source, "fn fs_main") {
				t.Fatal("shader is missing an entry point")
			}
			words, err := compileSPIRV(tt.source)
			if err != nil {
				t.Fatalf("compile: %v", err)
			}
			if len(words) == 0 {
				t.Fatal("SPIR-V output is empty")
			}
			if words[0] != 0x07230203 {
				t.Errorf("invalid SPIR-V magic: 0x%08X, want 0x07230203", words[0])
			}
		})
	}
}

func TestCompileSPIRVRejectsInvalid(t *testing.T) {
	if _, err := compileSPIRV("fn broken( {"); err == nil {
		t.Error("expected error for malformed WGSL")
	}
}
