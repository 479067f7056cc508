package logging

import (
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

const rotatedLayout = "20060102-150405"

// FileRotator is an io.Writer over a log file that rotates by size and
// by day. Rotated files are optionally gzipped and pruned by count and age.
type FileRotator struct {
	config *Config
	now    func() time.Time

	mu      sync.Mutex
	file    *os.File
	size    int64
	opened  time.Time
	lastSeq string
	seq     int

	// background compress and prune work
	bg sync.WaitGroup
}

// NewFileRotator opens cfg.FilePath for appending.
func NewFileRotator(cfg *Config) (*FileRotator, error) {
	if cfg.FilePath == "" {
		return nil, fmt.Errorf("log file path is required")
	}
	r := &FileRotator{config: cfg, now: time.Now}

	if err := os.MkdirAll(filepath.Dir(cfg.FilePath), 0750); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	if err := r.openFile(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *FileRotator) openFile() error {
	file, err := os.OpenFile(r.config.FilePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0640)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return fmt.Errorf("stat log file: %w", err)
	}

	r.file = file
	r.size = info.Size()
	r.opened = r.now()
	return nil
}

// Write implements io.Writer.
func (r *FileRotator) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.file == nil {
		if err := r.openFile(); err != nil {
			return 0, err
		}
	}

	if r.shouldRotate(int64(len(p))) {
		if err := r.rotate(); err != nil {
			return 0, fmt.Errorf("rotate log: %w", err)
		}
	}

	n, err := r.file.Write(p)
	r.size += int64(n)
	return n, err
}

func (r *FileRotator) shouldRotate(writeSize int64) bool {
	if r.size == 0 {
		return false
	}
	if maxBytes := r.config.MaxSize * 1024 * 1024; maxBytes > 0 && r.size+writeSize > maxBytes {
		return true
	}
	now := r.now()
	return r.opened.YearDay() != now.YearDay() || r.opened.Year() != now.Year()
}

// rotatedPath names the next backup; a counter keeps names unique
// within one second.
func (r *FileRotator) rotatedPath() string {
	stamp := r.now().Format(rotatedLayout)
	if stamp == r.lastSeq {
		r.seq++
	} else {
		r.lastSeq, r.seq = stamp, 0
	}
	if r.seq > 0 {
		stamp = fmt.Sprintf("%s.%d", stamp, r.seq)
	}

	name, ext := r.nameParts()
	return filepath.Join(filepath.Dir(r.config.FilePath), fmt.Sprintf("%s-%s%s", name, stamp, ext))
}

func (r *FileRotator) nameParts() (string, string) {
	base := filepath.Base(r.config.FilePath)
	ext := filepath.Ext(base)
	return strings.TrimSuffix(base, ext), ext
}

func (r *FileRotator) rotate() error {
	if err := r.file.Close(); err != nil {
		return fmt.Errorf("close current log: %w", err)
	}
	r.file = nil

	rotated := r.rotatedPath()
	if err := os.Rename(r.config.FilePath, rotated); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("rename log file: %w", err)
	}

	if err := r.openFile(); err != nil {
		return err
	}

	r.bg.Add(1)
	go func() {
		defer r.bg.Done()
		if r.config.Compress {
			compressFile(rotated)
		}
		r.prune()
	}()
	return nil
}

// compressFile replaces path with path.gz. Failures leave the plain file.
func compressFile(path string) {
	input, err := os.Open(path)
	if err != nil {
		return
	}
	defer input.Close()

	output, err := os.OpenFile(path+".gz", os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0640)
	if err != nil {
		return
	}

	gz := gzip.NewWriter(output)
	gz.Name = filepath.Base(path)
	if _, err := io.Copy(gz, input); err != nil {
		gz.Close()
		output.Close()
		os.Remove(path + ".gz")
		return
	}
	if err := gz.Close(); err != nil {
		output.Close()
		os.Remove(path + ".gz")
		return
	}
	if err := output.Close(); err != nil {
		os.Remove(path + ".gz")
		return
	}
	os.Remove(path)
}

// prune removes backups beyond MaxBackups and older than MaxAge days.
func (r *FileRotator) prune() {
	backups, err := r.backups()
	if err != nil {
		return
	}

	type entry struct {
		path    string
		modTime time.Time
	}
	files := make([]entry, 0, len(backups))
	for _, p := range backups {
		info, err := os.Stat(p)
		if err != nil {
			continue
		}
		files = append(files, entry{p, info.ModTime()})
	}
	// Newest first.
	sort.Slice(files, func(i, j int) bool { return files[i].modTime.After(files[j].modTime) })

	var cutoff time.Time
	if r.config.MaxAge > 0 {
		cutoff = r.now().AddDate(0, 0, -r.config.MaxAge)
	}
	for i, f := range files {
		tooMany := r.config.MaxBackups > 0 && i >= r.config.MaxBackups
		tooOld := !cutoff.IsZero() && f.modTime.Before(cutoff)
		if tooMany || tooOld {
			os.Remove(f.path)
		}
	}
}

func (r *FileRotator) backups() ([]string, error) {
	name, ext := r.nameParts()
	return filepath.Glob(filepath.Join(filepath.Dir(r.config.FilePath), name+"-*"+ext+"*"))
}

// Files returns the active log file followed by its backups.
func (r *FileRotator) Files() ([]string, error) {
	backups, err := r.backups()
	return append([]string{r.config.FilePath}, backups...), err
}

// Close waits for background compression and closes the file.
func (r *FileRotator) Close() error {
	r.mu.Lock()
	var err error
	if r.file != nil {
		err = r.file.Close()
		r.file = nil
	}
	r.mu.Unlock()

	r.bg.Wait()
	return err
}

// Sync flushes any buffered data to the file.
func (r *FileRotator) Sync() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.file != nil {
		return r.file.Sync()
	}
	return nil
}
