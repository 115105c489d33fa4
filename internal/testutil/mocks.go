// Package testutil holds test doubles and fixtures shared by the tests of
// the converter library and the CLI.
package testutil

import (
	"bytes"
	"io"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/CharlieHasAHeart/CyanScript/pkg/converter"
)

// MockCacheManager is a converter.CacheManager driven by testify
// expectations.
type MockCacheManager struct {
	mock.Mock
}

func (m *MockCacheManager) Load(cachePath string) error {
	args := m.Called(cachePath)
	return args.Error(0)
}

func (m *MockCacheManager) Check(filePath string, modTime time.Time, sourceHash, configHash string) (bool, string) {
	args := m.Called(filePath, modTime, sourceHash, configHash)
	hit, _ := args.Get(0).(bool)
	outputHash, _ := args.Get(1).(string)
	return hit, outputHash
}

func (m *MockCacheManager) Update(filePath string, modTime time.Time, sourceHash, configHash, outputHash string) error {
	args := m.Called(filePath, modTime, sourceHash, configHash, outputHash)
	return args.Error(0)
}

func (m *MockCacheManager) Persist(cachePath string) error {
	args := m.Called(cachePath)
	return args.Error(0)
}

// MockLanguageDetector is a language.LanguageDetector driven by testify
// expectations.
type MockLanguageDetector struct {
	mock.Mock
}

func (m *MockLanguageDetector) Detect(code []byte, hint string) (string, float64, error) {
	args := m.Called(code, hint)
	lang, _ := args.Get(0).(string)
	confidence, _ := args.Get(1).(float64)
	return lang, confidence, args.Error(2)
}

// MockEncodingHandler is an encoding.EncodingHandler driven by testify
// expectations.
type MockEncodingHandler struct {
	mock.Mock
}

func (m *MockEncodingHandler) DetectAndDecode(content []byte) ([]byte, string, bool, error) {
	args := m.Called(content)
	out, _ := args.Get(0).([]byte)
	name, _ := args.Get(1).(string)
	certain, _ := args.Get(2).(bool)
	return out, name, certain, args.Error(3)
}

func (m *MockEncodingHandler) IsBinary(content []byte) bool {
	args := m.Called(content)
	return args.Bool(0)
}

// MockGitClient is a git.GitClient driven by testify expectations.
type MockGitClient struct {
	mock.Mock
}

func (m *MockGitClient) GetFileMetadata(repoPath, filePath string) (map[string]string, error) {
	args := m.Called(repoPath, filePath)
	meta, _ := args.Get(0).(map[string]string)
	return meta, args.Error(1)
}

func (m *MockGitClient) GetChangedFiles(repoPath, mode, ref string) ([]string, error) {
	args := m.Called(repoPath, mode, ref)
	files, _ := args.Get(0).([]string)
	return files, args.Error(1)
}

// MapImageSource serves images from memory. Paths not in Files are
// reported missing with converter.ErrMissingResource.
type MapImageSource struct {
	Files map[string][]byte
}

func (s MapImageSource) Open(imagePath string) (io.ReadCloser, error) {
	data, ok := s.Files[imagePath]
	if !ok {
		return nil, converter.ErrMissingResource
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

// StatusEvent is one OnFileStatusUpdate call seen by RecordingHooks.
type StatusEvent struct {
	Path    string
	Status  converter.Status
	Message string
}

// RecordingHooks records every hook call. It is safe for concurrent use.
type RecordingHooks struct {
	mu         sync.Mutex
	Discovered []string
	Events     []StatusEvent
	Reports    []converter.Report
}

func (h *RecordingHooks) OnFileDiscovered(path string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.Discovered = append(h.Discovered, path)
	return nil
}

func (h *RecordingHooks) OnFileStatusUpdate(path string, status converter.Status, message string, _ time.Duration) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.Events = append(h.Events, StatusEvent{Path: path, Status: status, Message: message})
	return nil
}

func (h *RecordingHooks) OnRunComplete(report converter.Report) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.Reports = append(h.Reports, report)
	return nil
}

// FinalStatus returns the last status recorded for path.
func (h *RecordingHooks) FinalStatus(path string) (converter.Status, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for i := len(h.Events) - 1; i >= 0; i-- {
		if h.Events[i].Path == path {
			return h.Events[i].Status, true
		}
	}
	return "", false
}
