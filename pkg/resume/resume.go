// Package resume stores uploaded resumes on disk keyed by session and
// analyzes them with a document-capable inference provider.
package resume

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/prepzo/go-prepzo/pkg/inference"
)

// Upload limits and naming.
const (
	// MaxUploadBytes caps resume uploads at 5 MB.
	MaxUploadBytes = 5 << 20

	analysisPrompt = "You are a career coach reviewing a resume. Summarize the " +
		"candidate's background, strongest skills, and notable gaps. Write it " +
		"as coaching notes a voice assistant can draw on in conversation."
)

// Supported resume file extensions, in lookup order.
var extensions = []string{".pdf", ".docx"}

var mimeTypes = map[string]string{
	".pdf":  "application/pdf",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
}

// Sentinel errors.
var (
	// ErrNoResume is returned when no resume exists for a session.
	ErrNoResume = errors.New("resume: no resume uploaded for session")

	// ErrTooLarge is returned when an upload exceeds MaxUploadBytes.
	ErrTooLarge = errors.New("resume: file exceeds size limit")

	// ErrUnsupportedType is returned for non-PDF, non-DOCX uploads.
	ErrUnsupportedType = errors.New("resume: unsupported file type")
)

// DocumentProvider is the slice of inference.Provider the service needs.
type DocumentProvider interface {
	Document(ctx context.Context, req *inference.DocumentRequest) (*inference.DocumentResponse, error)
}

// Service manages resume files for sessions.
type Service struct {
	dir      string
	provider DocumentProvider
	logger   *slog.Logger
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) ServiceOption {
	return func(s *Service) { s.logger = l.With("component", "resume") }
}

// NewService creates a resume service storing files under dir.
func NewService(dir string, provider DocumentProvider, opts ...ServiceOption) (*Service, error) {
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("resume: create upload dir: %w", err)
	}
	s := &Service{
		dir:      dir,
		provider: provider,
		logger:   slog.Default().With("component", "resume"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// SaveUpload stores an uploaded resume for a session, replacing any
// previous upload. filename is only used for its extension.
func (s *Service) SaveUpload(sessionID, filename string, r io.Reader) (string, error) {
	ext := filepath.Ext(filename)
	if _, ok := mimeTypes[ext]; !ok {
		return "", ErrUnsupportedType
	}

	// One byte past the cap distinguishes "at limit" from "over".
	data, err := io.ReadAll(io.LimitReader(r, MaxUploadBytes+1))
	if err != nil {
		return "", fmt.Errorf("resume: read upload: %w", err)
	}
	if len(data) > MaxUploadBytes {
		return "", ErrTooLarge
	}

	// Drop any stale resume with a different extension.
	for _, old := range extensions {
		if old != ext {
			os.Remove(s.path(sessionID, old))
		}
	}

	path := s.path(sessionID, ext)
	if err := os.WriteFile(path, data, 0640); err != nil {
		return "", fmt.Errorf("resume: write upload: %w", err)
	}

	s.logger.Info("resume stored", "session", sessionID, "bytes", len(data), "ext", ext)
	return path, nil
}

// Locate returns the stored resume path for a session, or ErrNoResume.
// Empty and oversized files are treated as absent.
func (s *Service) Locate(sessionID string) (string, error) {
	for _, ext := range extensions {
		path := s.path(sessionID, ext)
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		if info.Size() == 0 || info.Size() > MaxUploadBytes {
			continue
		}
		return path, nil
	}
	return "", ErrNoResume
}

// Analyze locates the session's resume and returns coaching notes
// produced by the document provider.
func (s *Service) Analyze(ctx context.Context, sessionID string) (string, error) {
	path, err := s.Locate(sessionID)
	if err != nil {
		return "", err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("resume: read file: %w", err)
	}

	resp, err := s.provider.Document(ctx, &inference.DocumentRequest{
		Data:     data,
		MIMEType: mimeTypes[filepath.Ext(path)],
		Prompt:   analysisPrompt,
	})
	if err != nil {
		return "", err
	}

	s.logger.Info("resume analyzed", "session", sessionID, "notes_len", len(resp.Content))
	return resp.Content, nil
}

func (s *Service) path(sessionID, ext string) string {
	return filepath.Join(s.dir, sessionID+"_resume"+ext)
}
