// Package store persists scrape state across restarts.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"chattysync/internal/chatty"
	"chattysync/internal/components/assert"
	"chattysync/internal/components/telemetry"

	"github.com/klauspost/compress/gzip"
)

// StateFileName is the name of the state file inside the data directory.
const StateFileName = "scrape-state.json.gz"

const (
	report_file_store_save = "file-store.save"
	report_file_store_load = "file-store.load"
)

// FileStore keeps the scrape state in a gzip compressed json file. The
// previous file is rotated to a ".bak" sibling on every save.
type FileStore struct {
	path string
	tel  telemetry.API
}

func NewFileStore(dataPath string, tel telemetry.API) FileStore {
	assert.NotEmptyStr(dataPath)
	assert.NotNil(tel)
	return FileStore{
		path: filepath.Join(dataPath, StateFileName),
		tel:  telemetry.NewScopedAPI("store", tel),
	}
}

func (s FileStore) Path() string {
	return s.path
}

func (s FileStore) BackupPath() string {
	return s.path + ".bak"
}

// Save writes state to a temporary file, rotates the current file to the
// backup and moves the new file into place.
func (s FileStore) Save(state chatty.ScrapeState) error {
	err := os.MkdirAll(filepath.Dir(s.path), 0777)
	if err != nil {
		return fmt.Errorf("save state: %w", err)
	}

	tmp := s.path + ".tmp"
	err = writeState(tmp, state)
	if err != nil {
		os.Remove(tmp)
		s.tel.ReportBroken(report_file_store_save, err, tmp)
		return fmt.Errorf("save state: %w", err)
	}

	err = os.Rename(s.path, s.BackupPath())
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		s.tel.ReportBroken(report_file_store_save, fmt.Errorf("rotate backup: %w", err), s.path)
		return fmt.Errorf("save state: %w", err)
	}
	err = os.Rename(tmp, s.path)
	if err != nil {
		s.tel.ReportBroken(report_file_store_save, fmt.Errorf("replace: %w", err), s.path)
		return fmt.Errorf("save state: %w", err)
	}
	return nil
}

func writeState(path string, state chatty.ScrapeState) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	zw := gzip.NewWriter(f)
	err = json.NewEncoder(zw).Encode(state)
	if err != nil {
		return err
	}
	err = zw.Close()
	if err != nil {
		return err
	}
	return f.Sync()
}

func readState(path string) (chatty.ScrapeState, error) {
	f, err := os.Open(path)
	if err != nil {
		return chatty.ScrapeState{}, err
	}
	defer f.Close()

	zr, err := gzip.NewReader(f)
	if err != nil {
		return chatty.ScrapeState{}, fmt.Errorf("%s: %w", path, err)
	}
	defer zr.Close()

	var state chatty.ScrapeState
	err = json.NewDecoder(zr).Decode(&state)
	if err != nil {
		return chatty.ScrapeState{}, fmt.Errorf("%s: %w", path, err)
	}
	// drain so the gzip checksum is verified
	_, err = io.Copy(io.Discard, zr)
	if err != nil {
		return chatty.ScrapeState{}, fmt.Errorf("%s: %w", path, err)
	}
	if state.Chatty == nil {
		state.Chatty = chatty.NewChatty(nil)
	}
	return state, nil
}

// Load reads the state file, falling back to the backup when the state
// file is missing or corrupt. When neither can be read it returns an empty
// state along with the errors of both attempts.
func (s FileStore) Load() (chatty.ScrapeState, error) {
	state, primaryErr := readState(s.path)
	if primaryErr == nil {
		return state, nil
	}
	if !errors.Is(primaryErr, os.ErrNotExist) {
		s.tel.ReportWarning(report_file_store_load, primaryErr)
	}

	state, backupErr := readState(s.BackupPath())
	if backupErr == nil {
		s.tel.ReportDebug("loaded state from backup", s.BackupPath())
		return state, nil
	}
	if !errors.Is(backupErr, os.ErrNotExist) {
		s.tel.ReportWarning(report_file_store_load, backupErr)
	}

	return Empty(), errors.Join(primaryErr, backupErr)
}

// Empty is the state of a first boot.
func Empty() chatty.ScrapeState {
	return chatty.ScrapeState{Chatty: chatty.NewChatty(nil)}
}

// ReadFile reads a state file at an arbitrary path.
func ReadFile(path string) (chatty.ScrapeState, error) {
	return readState(path)
}
