package server

import "testing"

func TestResolveLanguage(t *testing.T) {
	iso1 := func(v string) map[string]string { return map[string]string{languageMetadataKey: v} }

	tests := []struct {
		name      string
		requested string
		metadata  map[string]string
		want      string
	}{
		{name: "client with metadata", requested: "client", metadata: iso1("pl"), want: "pl"},
		{name: "client without metadata", requested: "client", want: "auto"},
		{name: "client with empty metadata", requested: "client", metadata: map[string]string{}, want: "auto"},
		{name: "client with empty iso1", requested: "client", metadata: iso1(""), want: "auto"},
		{name: "client with padded iso1", requested: "client", metadata: iso1("  pl  "), want: "pl"},
		{name: "client with blank iso1", requested: "client", metadata: iso1("   "), want: "auto"},
		{name: "auto ignores metadata", requested: "auto", metadata: iso1("pl"), want: "auto"},
		{name: "specific ignores metadata", requested: "de", metadata: iso1("pl"), want: "de"},
		{name: "specific without metadata", requested: " en ", want: "en"},
		{name: "empty defers to configured default", requested: "", metadata: iso1("pl"), want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := resolveLanguage(tt.requested, tt.metadata); got != tt.want {
				t.Errorf("resolveLanguage(%q, %v): got %q, want %q", tt.requested, tt.metadata, got, tt.want)
			}
		})
	}
}
