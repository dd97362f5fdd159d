package store

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/jmylchreest/autovol/internal/model"
)

// SchemaVersion is the current history file schema version.
const SchemaVersion = 1

// Persistence stores the adjustment history.
type Persistence interface {
	// Load reads every valid adjustment in file order. Unreadable lines are
	// skipped and reported through a *CorruptionError alongside the result.
	Load() ([]model.Adjustment, error)

	// Append adds one adjustment.
	Append(a model.Adjustment) error

	// Rewrite replaces the stored history (after prune).
	Rewrite(as []model.Adjustment) error

	// Clear removes all stored adjustments.
	Clear() error

	// Close releases the file.
	Close() error
}

// ErrPersistenceClosed is returned when operations are attempted on a closed persistence.
var ErrPersistenceClosed = errors.New("persistence is closed")

// ErrCorruptHistory matches any *CorruptionError.
var ErrCorruptHistory = errors.New("corrupt history")

// CorruptionError lists history lines that could not be used.
type CorruptionError struct {
	Path  string
	Lines []int // 1-based line numbers
}

func (e *CorruptionError) Error() string {
	return fmt.Sprintf("%s: %d unusable lines (first at line %d)", e.Path, len(e.Lines), e.Lines[0])
}

// Unwrap lets errors.Is match ErrCorruptHistory.
func (e *CorruptionError) Unwrap() error {
	return ErrCorruptHistory
}

// schemaHeader is the first line of the history file.
type schemaHeader struct {
	AutovolSchemaVersion int   `json:"autovol_schema_version"`
	CreatedAt            int64 `json:"created_at"`
}

// JSONLPersistence keeps the history as one JSON adjustment per line after a
// schema header.
type JSONLPersistence struct {
	mu     sync.Mutex
	path   string
	file   *os.File
	closed bool
}

// NewJSONLPersistence opens (or creates) the history file at path.
func NewJSONLPersistence(path string) (*JSONLPersistence, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to open file %s: %w", path, err)
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, err
	}

	p := &JSONLPersistence{path: path, file: file}
	if info.Size() == 0 {
		if err := p.writeHeader(); err != nil {
			file.Close()
			return nil, err
		}
	}
	return p, nil
}

// Path returns the history file path.
func (p *JSONLPersistence) Path() string {
	return p.path
}

func (p *JSONLPersistence) writeHeader() error {
	return p.writeLine(schemaHeader{
		AutovolSchemaVersion: SchemaVersion,
		CreatedAt:            time.Now().Unix(),
	})
}

func (p *JSONLPersistence) writeLine(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = p.file.Write(append(data, '\n'))
	return err
}

// Load reads all valid adjustments. Adjustments that fail to decode or
// validate are dropped and returned as a *CorruptionError next to the
// usable entries. A header from a newer schema is a hard error.
func (p *JSONLPersistence) Load() ([]model.Adjustment, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed || p.file == nil {
		return nil, ErrPersistenceClosed
	}
	return p.loadLocked()
}

func (p *JSONLPersistence) loadLocked() ([]model.Adjustment, error) {
	if _, err := p.file.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("seek %s: %w", p.path, err)
	}

	var (
		adjustments []model.Adjustment
		bad         []int
	)
	reader := bufio.NewReader(p.file)
	for lineNum := 1; ; lineNum++ {
		line, readErr := reader.ReadBytes('\n')
		if readErr != nil && readErr != io.EOF {
			return adjustments, fmt.Errorf("read %s: %w", p.path, readErr)
		}

		if len(trimNewline(line)) > 0 {
			a, isHeader, err := decodeLine(trimNewline(line), lineNum == 1)
			switch {
			case err != nil && isHeader:
				return nil, err
			case err != nil:
				bad = append(bad, lineNum)
			case !isHeader:
				adjustments = append(adjustments, a)
			}
		}

		if readErr == io.EOF {
			break
		}
	}

	if _, err := p.file.Seek(0, io.SeekEnd); err != nil {
		return adjustments, err
	}
	if len(bad) > 0 {
		return adjustments, &CorruptionError{Path: p.path, Lines: bad}
	}
	return adjustments, nil
}

// decodeLine parses one history line. The first line may be the schema
// header; files written without one start directly with adjustments.
func decodeLine(line []byte, first bool) (model.Adjustment, bool, error) {
	if first {
		var header schemaHeader
		if json.Unmarshal(line, &header) == nil && header.AutovolSchemaVersion > 0 {
			if header.AutovolSchemaVersion > SchemaVersion {
				return model.Adjustment{}, true, fmt.Errorf("unsupported schema version %d (max: %d)",
					header.AutovolSchemaVersion, SchemaVersion)
			}
			return model.Adjustment{}, true, nil
		}
	}

	var a model.Adjustment
	if err := json.Unmarshal(line, &a); err != nil {
		return a, false, err
	}
	if err := a.Validate(); err != nil {
		return a, false, err
	}
	return a, false, nil
}

func trimNewline(line []byte) []byte {
	for len(line) > 0 && (line[len(line)-1] == '\n' || line[len(line)-1] == '\r') {
		line = line[:len(line)-1]
	}
	return line
}

// Append writes one adjustment and syncs the file.
func (p *JSONLPersistence) Append(a model.Adjustment) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed || p.file == nil {
		return ErrPersistenceClosed
	}
	if err := p.writeLine(a); err != nil {
		return err
	}
	return p.file.Sync()
}

// Rewrite replaces the file contents with as.
func (p *JSONLPersistence) Rewrite(as []model.Adjustment) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrPersistenceClosed
	}

	backupPath := p.path + ".bak"
	if err := p.replaceLocked(as, backupPath); err != nil {
		return err
	}
	os.Remove(backupPath)
	return nil
}

// Clear empties the history. The previous file is kept as .bak.
func (p *JSONLPersistence) Clear() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrPersistenceClosed
	}
	return p.replaceLocked(nil, p.path+".bak")
}

// Recover moves a damaged history file aside and rewrites it with the
// adjustments that still load. It returns the path of the moved file.
func (p *JSONLPersistence) Recover() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed || p.file == nil {
		return "", ErrPersistenceClosed
	}

	valid, err := p.loadLocked()
	if err != nil && !errors.Is(err, ErrCorruptHistory) {
		return "", err
	}

	backupPath := p.path + ".corrupted." + time.Now().Format("20060102-150405")
	if err := p.replaceLocked(valid, backupPath); err != nil {
		return "", err
	}
	return backupPath, nil
}

// replaceLocked moves the current file to backupPath and writes a fresh
// file holding as.
func (p *JSONLPersistence) replaceLocked(as []model.Adjustment, backupPath string) error {
	if p.file != nil {
		if err := p.file.Close(); err != nil {
			return err
		}
		p.file = nil
	}

	if err := os.Rename(p.path, backupPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to create backup: %w", err)
	}

	file, err := os.OpenFile(p.path, os.O_RDWR|os.O_CREATE|os.O_TRUNC|os.O_APPEND, 0600)
	if err != nil {
		os.Rename(backupPath, p.path)
		return fmt.Errorf("failed to create new file: %w", err)
	}
	p.file = file

	if err := p.writeHeader(); err != nil {
		return err
	}
	for _, a := range as {
		if err := p.writeLine(a); err != nil {
			return err
		}
	}
	return p.file.Sync()
}

// Close releases the file.
func (p *JSONLPersistence) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true

	if p.file != nil {
		err := p.file.Close()
		p.file = nil
		return err
	}
	return nil
}

// OpenHistory opens the history file at path and loads it. A damaged file
// is recovered in place, keeping every adjustment that still validates,
// so later appends never land behind unreadable lines.
func OpenHistory(path string, logger *slog.Logger) (*History, error) {
	if logger == nil {
		logger = slog.Default()
	}

	persistence, err := NewJSONLPersistence(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create persistence: %w", err)
	}

	history := NewHistory(persistence)
	err = history.Hydrate()
	if errors.Is(err, ErrCorruptHistory) {
		backup, rerr := persistence.Recover()
		if rerr != nil {
			history.Close()
			return nil, fmt.Errorf("recover %s: %w", path, rerr)
		}
		logger.Warn("recovered corrupt history", "error", err, "backup", backup, "kept", history.Count())
		err = history.Hydrate()
	}
	if err != nil {
		history.Close()
		return nil, fmt.Errorf("failed to load history: %w", err)
	}
	return history, nil
}
