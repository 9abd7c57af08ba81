// Package prefs persists per-user client state, currently the canvas width.
package prefs

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/sirupsen/logrus"
)

// Memory keeps widths for the lifetime of the process.
type Memory struct {
	mu     sync.Mutex
	widths map[string]float64
}

func NewMemory() *Memory {
	return &Memory{widths: make(map[string]float64)}
}

func (m *Memory) LoadWidth(userID string) (float64, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.widths[userID]
	return w, ok, nil
}

func (m *Memory) SaveWidth(userID string, width float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.widths[userID] = width
	return nil
}

// fileState is the on-disk layout of a prefs file.
type fileState struct {
	CanvasWidth map[string]float64 `json:"canvasWidth"`
}

// File stores widths in a JSON file, rewriting it atomically on each save.
type File struct {
	mu   sync.Mutex
	path string
}

func NewFile(path string) *File {
	return &File{path: path}
}

func (f *File) read() (fileState, error) {
	state := fileState{CanvasWidth: map[string]float64{}}
	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return state, nil
	}
	if err != nil {
		return state, err
	}
	if err := json.Unmarshal(data, &state); err != nil {
		return state, fmt.Errorf("decoding %s: %w", f.path, err)
	}
	if state.CanvasWidth == nil {
		state.CanvasWidth = map[string]float64{}
	}
	return state, nil
}

func (f *File) LoadWidth(userID string) (float64, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	state, err := f.read()
	if err != nil {
		return 0, false, err
	}
	w, ok := state.CanvasWidth[userID]
	return w, ok, nil
}

func (f *File) SaveWidth(userID string, width float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	state, err := f.read()
	if err != nil {
		logrus.WithField("path", f.path).WithError(err).Warn("Discarding unreadable preferences")
		state = fileState{CanvasWidth: map[string]float64{}}
	}
	state.CanvasWidth[userID] = width

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(f.path), 0755); err != nil {
		return err
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, f.path)
}
