package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// FileName - имя файла хранилища внутри каталога
const FileName = "storage.json"

// FileStorage - хранилище в одном JSON документе с правами 0600
//
// Запись идет во временный файл с последующим rename, поэтому читатель
// видит либо старый, либо новый документ целиком.
type FileStorage struct {
	mu     sync.Mutex
	path   string
	closed bool
}

// NewFileStorage создает хранилище в каталоге dir (каталог создается при необходимости)
func NewFileStorage(dir string) (*FileStorage, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create storage dir: %w", err)
	}
	return &FileStorage{path: filepath.Join(dir, FileName)}, nil
}

// Path возвращает путь к файлу хранилища
func (f *FileStorage) Path() string {
	return f.path
}

func (f *FileStorage) Get(key string) (string, bool, error) {
	if key == "" {
		return "", false, ErrEmptyKey
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return "", false, ErrClosed
	}

	values, err := f.load()
	if err != nil {
		return "", false, err
	}
	v, ok := values[key]
	return v, ok, nil
}

func (f *FileStorage) Set(key, value string) error {
	if key == "" {
		return ErrEmptyKey
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return ErrClosed
	}

	values, err := f.load()
	if err != nil {
		return err
	}
	values[key] = value
	return f.save(values)
}

func (f *FileStorage) Delete(key string) error {
	if key == "" {
		return ErrEmptyKey
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return ErrClosed
	}

	values, err := f.load()
	if err != nil {
		return err
	}
	if _, ok := values[key]; !ok {
		return nil
	}
	delete(values, key)
	return f.save(values)
}

func (f *FileStorage) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return nil
}

// load читает документ; отсутствующий файл = пустое хранилище
func (f *FileStorage) load() (map[string]string, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return make(map[string]string), nil
		}
		return nil, fmt.Errorf("failed to read storage: %w", err)
	}

	values := make(map[string]string)
	if len(data) == 0 {
		return values, nil
	}
	if err := json.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("failed to decode storage: %w", err)
	}
	return values, nil
}

func (f *FileStorage) save(values map[string]string) error {
	data, err := json.Marshal(values)
	if err != nil {
		return fmt.Errorf("failed to encode storage: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(f.path), ".storage-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to chmod temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tmpName, f.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace storage: %w", err)
	}
	return nil
}
