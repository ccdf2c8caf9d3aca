package export

import (
	"errors"
	"fmt"
	"os"

	json "github.com/goccy/go-json"
	"github.com/klauspost/compress/zstd"

	"github.com/sadopc/flowbank/internal/logger"
	"github.com/sadopc/flowbank/internal/store"
)

// Archiver writes store snapshots as zstd-compressed JSON.
type Archiver struct {
	encoder *zstd.Encoder
	decoder *zstd.Decoder
	log     logger.Logger
}

func NewArchiver(log logger.Logger) (*Archiver, error) {
	if log == nil {
		log = logger.NewNop()
	}
	encoder, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(0))
	if err != nil {
		encoder.Close()
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}
	return &Archiver{encoder: encoder, decoder: decoder, log: log}, nil
}

func (a *Archiver) Close() {
	a.encoder.Close()
	a.decoder.Close()
}

// Write saves snap to path through a temp file and rename, so a crash never
// leaves a half-written backup behind.
func (a *Archiver) Write(snap *store.Snapshot, path string) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	data = a.encoder.EncodeAll(data, make([]byte, 0, len(data)/2))

	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create backup file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("write backup file: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("sync backup file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close backup file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename backup file: %w", err)
	}
	a.log.Infof(logger.TypeExport, "wrote backup %s: %d history items, %d bytes", path, len(snap.History), len(data))
	return nil
}

// Read loads a backup. A missing file wraps os.ErrNotExist; a corrupt one
// is an error for the caller to report.
func (a *Archiver) Read(path string) (*store.Snapshot, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		a.log.Warnf(logger.TypeExport, "backup %s not found", path)
		return nil, fmt.Errorf("read backup %s: %w", path, err)
	}
	if err != nil {
		return nil, fmt.Errorf("read backup file: %w", err)
	}

	raw, err := a.decoder.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("decompress backup: %w", err)
	}
	var snap store.Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, fmt.Errorf("decode backup: %w", err)
	}
	return &snap, nil
}

// WriteBackup is Write with a one-off Archiver.
func WriteBackup(snap *store.Snapshot, path string) error {
	a, err := NewArchiver(nil)
	if err != nil {
		return err
	}
	defer a.Close()
	return a.Write(snap, path)
}

// ReadBackup is Read with a one-off Archiver.
func ReadBackup(path string) (*store.Snapshot, error) {
	a, err := NewArchiver(nil)
	if err != nil {
		return nil, err
	}
	defer a.Close()
	return a.Read(path)
}
