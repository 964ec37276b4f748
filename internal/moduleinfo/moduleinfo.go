package moduleinfo

// Metadata captures static identifiers for the bridge. Centralising the values
// keeps log attributes, metric scopes and gRPC metadata in sync.
type Metadata struct {
	Name        string
	BinaryName  string
	Slug        string
	Description string
	GeneratorID string
	Version     string
}

// Info describes the current module.
var Info = Metadata{
	Name:        "Nupi Whisper Bridge",
	BinaryName:  "plugin-stt-whisper-bridge",
	Slug:        "stt-whisper-bridge",
	Description: "Lifecycle and marshalling bridge for a local Whisper engine.",
	GeneratorID: "stt-whisper-bridge",
	Version:     "0.3.0",
}

// Version returns the module version reported in telemetry.
func Version() string {
	return Info.Version
}

// TranscriptMetadata produces the standard metadata payload attached
// to transcription responses.
func TranscriptMetadata(modelPath, language string) map[string]string {
	return map[string]string{
		"generator":  Info.GeneratorID,
		"model_path": modelPath,
		"language":   language,
	}
}
