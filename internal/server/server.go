package server

import (
	"context"
	"log/slog"
	"strings"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/nupi-ai/plugin-stt-whisper-bridge/internal/bridge"
	"github.com/nupi-ai/plugin-stt-whisper-bridge/internal/marshal"
	"github.com/nupi-ai/plugin-stt-whisper-bridge/internal/moduleinfo"
	"github.com/nupi-ai/plugin-stt-whisper-bridge/internal/registry"
)

// languageMetadataKey carries the client's ISO 639-1 language when a context
// is created with the "client" language mode.
const languageMetadataKey = "nupi.lang.iso1"

// Server exposes a Bridge over gRPC. Bridge sentinels are returned in the
// response status field; gRPC errors are reserved for malformed requests.
type Server struct {
	bridge *bridge.Bridge
	log    *slog.Logger
}

var _ BridgeServer = (*Server)(nil)

// New returns a new Server instance.
func New(b *bridge.Bridge, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if b == nil {
		panic("server: bridge must not be nil")
	}
	return &Server{
		bridge: b,
		log:    logger.With("component", "server"),
	}
}

// CreateContext implements BridgeServer.
func (s *Server) CreateContext(_ context.Context, req *CreateContextRequest) (*CreateContextResponse, error) {
	if strings.TrimSpace(req.ModelPath) == "" {
		return nil, status.Error(codes.InvalidArgument, "model_path is required")
	}
	language := resolveLanguage(req.Language, req.Metadata)

	var (
		handle registry.Handle
		st     bridge.Status
	)
	if req.Secondary {
		handle, st = s.bridge.OpenContextWithStatus(req.ModelPath, language)
	} else {
		handle, st = s.bridge.CreateContextWithStatus(req.ModelPath, language)
	}
	s.log.Info("create context",
		"model_path", req.ModelPath,
		"language", language,
		"secondary", req.Secondary,
		"handle", handle.String(),
		"status", st.String(),
	)
	return &CreateContextResponse{Handle: uint64(handle), Status: st.String()}, nil
}

// Transcribe implements BridgeServer.
func (s *Server) Transcribe(_ context.Context, req *TranscribeRequest) (*TranscribeResponse, error) {
	if len(req.Samples) > 0 && len(req.PCM16) > 0 {
		return nil, status.Error(codes.InvalidArgument, "samples and pcm16 are mutually exclusive")
	}
	if len(req.PCM16)%2 != 0 {
		return nil, status.Error(codes.InvalidArgument, "pcm16 payload must hold whole 16-bit samples")
	}
	samples := req.Samples
	if len(req.PCM16) > 0 {
		samples = marshal.PCM16LE(req.PCM16)
	}

	handle := registry.Handle(req.Handle)
	result, st := s.bridge.TranscribeResult(handle, samples)
	resp := &TranscribeResponse{
		Text:      result.Text,
		Status:    st.String(),
		RequestID: result.RequestID,
		Samples:   len(samples),
	}
	for _, seg := range result.Segments {
		resp.Segments = append(resp.Segments, Segment{
			Text:    seg.Text,
			StartMs: seg.Start.Milliseconds(),
			EndMs:   seg.End.Milliseconds(),
		})
	}
	if info, err := s.bridge.Registry().Info(handle); err == nil {
		resp.Metadata = moduleinfo.TranscriptMetadata(info.ModelPath, result.Language)
	}
	return resp, nil
}

// ReleaseContext implements BridgeServer.
func (s *Server) ReleaseContext(_ context.Context, req *ReleaseContextRequest) (*ReleaseContextResponse, error) {
	s.bridge.ReleaseContext(registry.Handle(req.Handle))
	return &ReleaseContextResponse{}, nil
}

// ListContexts implements BridgeServer.
func (s *Server) ListContexts(context.Context, *ListContextsRequest) (*ListContextsResponse, error) {
	infos := s.bridge.Contexts()
	resp := &ListContextsResponse{Contexts: make([]ContextInfo, 0, len(infos))}
	for _, info := range infos {
		resp.Contexts = append(resp.Contexts, ContextInfo{
			Handle:    uint64(info.Handle),
			ModelPath: info.ModelPath,
			Language:  info.Language,
			State:     info.State.String(),
			Current:   info.Current,
			LoadedAt:  info.LoadedAt,
		})
	}
	return resp, nil
}

// resolveLanguage returns the language hint for a new context. In "client"
// mode the hint comes from request metadata, falling back to "auto".
func resolveLanguage(requested string, metadata map[string]string) string {
	requested = strings.TrimSpace(requested)
	if requested != "client" {
		return requested
	}
	if iso1 := strings.TrimSpace(metadata[languageMetadataKey]); iso1 != "" {
		return iso1
	}
	return "auto"
}
