package converter

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// StagedFilePrefix — префикс имён временных файлов.
// По нему janitor находит файлы, оставшиеся после аварийного завершения.
const StagedFilePrefix = "docconv-"

// Stager сохраняет загруженные файлы во временную директорию.
type Stager struct {
	dir string
}

// NewStager создаёт Stager. Пустой dir означает os.TempDir().
func NewStager(dir string) *Stager {
	if dir == "" {
		dir = os.TempDir()
	}
	return &Stager{dir: dir}
}

// Dir возвращает временную директорию.
func (s *Stager) Dir() string {
	return s.dir
}

// Stage копирует src во временный файл.
// При ошибке частично записанный файл удаляется. Ошибка чтения src
// возвращается как ErrInvalidInput, ошибка записи на диск как ErrStaging.
func (s *Stager) Stage(name string, src io.Reader) (*StagedFile, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: create dir: %v", ErrStaging, err)
	}

	ext := strings.ToLower(filepath.Ext(filepath.Base(name)))
	f, err := os.CreateTemp(s.dir, StagedFilePrefix+"*"+sanitizeExt(ext))
	if err != nil {
		return nil, fmt.Errorf("%w: create file: %v", ErrStaging, err)
	}

	source := &sourceReader{r: src}
	size, copyErr := io.Copy(f, source)
	closeErr := f.Close()
	if copyErr != nil || closeErr != nil {
		os.Remove(f.Name())
		switch {
		case source.err != nil:
			return nil, fmt.Errorf("%w: %w", ErrInvalidInput, source.err)
		case copyErr != nil:
			return nil, fmt.Errorf("%w: write: %w", ErrStaging, copyErr)
		default:
			return nil, fmt.Errorf("%w: close: %v", ErrStaging, closeErr)
		}
	}

	return &StagedFile{
		Path: f.Name(),
		Name: name,
		Size: size,
	}, nil
}

// sourceReader запоминает ошибку чтения источника, чтобы отличить
// оборванную загрузку от ошибки локального диска.
type sourceReader struct {
	r   io.Reader
	err error
}

func (s *sourceReader) Read(p []byte) (int, error) {
	n, err := s.r.Read(p)
	if err != nil && err != io.EOF {
		s.err = err
	}
	return n, err
}

// sanitizeExt оставляет расширение только если оно безопасно для шаблона CreateTemp.
func sanitizeExt(ext string) string {
	if len(ext) > 16 || strings.ContainsAny(ext, `/\*`) {
		return ""
	}
	return ext
}

// StagedFile — временная копия загруженного файла на время одного запроса.
type StagedFile struct {
	// Path — путь к временному файлу.
	Path string

	// Name — исходное имя файла от клиента.
	Name string

	// Size — размер в байтах.
	Size int64

	once      sync.Once
	removeErr error
}

// Open открывает файл для чтения.
func (f *StagedFile) Open() (*os.File, error) {
	return os.Open(f.Path)
}

// Remove удаляет файл. Повторные вызовы ничего не делают
// и возвращают результат первого.
func (f *StagedFile) Remove() error {
	f.once.Do(func() {
		err := os.Remove(f.Path)
		if err != nil && !os.IsNotExist(err) {
			f.removeErr = err
		}
	})
	return f.removeErr
}
