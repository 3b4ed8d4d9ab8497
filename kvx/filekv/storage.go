// Package filekv stores an origin's entries as a single JSON object on disk,
// the way a browser keeps local storage per origin. Entries survive restarts
// and changes made by other processes are picked up by Watch.
package filekv

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
	"github.com/rentapp/x/errorx"
	"github.com/rentapp/x/kvx"
	"github.com/rentapp/x/loggerx"
	"github.com/rentapp/x/tracex"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
	"go.opentelemetry.io/otel/attribute"
)

// DefaultMaxSize matches the usual browser local storage quota.
const DefaultMaxSize int64 = 5 * 1024 * 1024

var unsafeOriginChars = regexp.MustCompile(`[^A-Za-z0-9._-]`)

type Options struct {
	// Dir holds one document per origin. It is created if missing.
	Dir    string
	Origin string
	// MaxSize bounds the document size in bytes. Zero means DefaultMaxSize.
	MaxSize int64
	Logger  *loggerx.Logger
}

type Storage struct {
	kvx.Broadcaster

	path    string
	maxSize int64
	l       *loggerx.Logger

	// mu serializes writers of this process; writers in other processes are
	// not coordinated and the last rename wins.
	mu   sync.Mutex
	last map[string]string

	watchMu sync.Mutex
	watcher *fsnotify.Watcher
	done    chan struct{}
	wg      sync.WaitGroup
}

var (
	_ kvx.Storage = (*Storage)(nil)
	_ kvx.Swapper = (*Storage)(nil)
	_ kvx.Lister  = (*Storage)(nil)
	_ kvx.Watcher = (*Storage)(nil)
)

func New(opts Options) (*Storage, error) {
	if opts.Dir == "" {
		return nil, errorx.InvalidArgumentErrorf("filekv: a directory is required")
	}
	if opts.Origin == "" {
		return nil, errorx.InvalidArgumentErrorf("filekv: an origin is required")
	}
	if err := os.MkdirAll(opts.Dir, 0o700); err != nil {
		return nil, errors.WithStack(err)
	}

	maxSize := opts.MaxSize
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	l := opts.Logger
	if l == nil {
		l = loggerx.NewDiscard()
	}

	return &Storage{
		path:    filepath.Join(opts.Dir, FileName(opts.Origin)),
		maxSize: maxSize,
		l:       l.WithFields(attribute.String("component", "filekv.Storage")),
	}, nil
}

// FileName returns the document name used for origin.
func FileName(origin string) string {
	return unsafeOriginChars.ReplaceAllString(origin, "_") + ".json"
}

func (s *Storage) Path() string {
	return s.path
}

func (s *Storage) Get(_ context.Context, key string) (string, bool, error) {
	if err := kvx.ValidateKey(key); err != nil {
		return "", false, err
	}
	doc, err := s.read()
	if err != nil {
		return "", false, err
	}
	v, ok := lookup(doc, key)
	return v, ok, nil
}

func (s *Storage) Set(_ context.Context, key, value string) error {
	if err := kvx.ValidateKey(key); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read()
	if err != nil {
		return err
	}
	return s.write(doc, key, value)
}

func (s *Storage) CompareAndSwap(_ context.Context, key string, old *string, next string) (bool, error) {
	if err := kvx.ValidateKey(key); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read()
	if err != nil {
		return false, err
	}
	cur, ok := lookup(doc, key)
	if (old == nil && ok) || (old != nil && (!ok || cur != *old)) {
		return false, nil
	}
	return true, s.write(doc, key, next)
}

func (s *Storage) Keys(context.Context) ([]string, error) {
	doc, err := s.read()
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0)
	for k := range entries(doc) {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

// read returns the current document, "{}" when the file does not exist yet.
func (s *Storage) read() ([]byte, error) {
	doc, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return []byte("{}"), nil
	} else if err != nil {
		return nil, errors.WithStack(err)
	}
	if len(bytes.TrimSpace(doc)) == 0 {
		return []byte("{}"), nil
	}
	if !gjson.ValidBytes(doc) || !gjson.ParseBytes(doc).IsObject() {
		return nil, errorx.InternalErrorf("filekv: %s is not a JSON object", s.path)
	}
	return doc, nil
}

// write must be called with s.mu held.
func (s *Storage) write(doc []byte, key, value string) error {
	out, err := sjson.SetBytes(doc, escapeKey(key), value)
	if err != nil {
		return errorx.InternalErrorf("filekv: could not set %q: %v", key, err)
	}
	if int64(len(out)) > s.maxSize {
		return errorx.FailedPreconditionErrorf("filekv: quota of %d bytes exceeded while setting %q", s.maxSize, key)
	}

	if err := atomicWrite(s.path, out); err != nil {
		return err
	}

	s.last = entries(out)
	s.Broadcast(kvx.Event{Key: key, Value: value, Found: true})
	return nil
}

func atomicWrite(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return errors.WithStack(err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errors.WithStack(err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return errors.WithStack(err)
	}
	if err := tmp.Close(); err != nil {
		return errors.WithStack(err)
	}
	if err := os.Chmod(tmp.Name(), 0o600); err != nil {
		return errors.WithStack(err)
	}
	return errors.WithStack(os.Rename(tmp.Name(), path))
}

// escapeKey turns key into a single gjson/sjson path component.
func escapeKey(key string) string {
	var b strings.Builder
	b.Grow(len(key))
	for i := 0; i < len(key); i++ {
		c := key[i]
		isWord := c >= 0x80 || c == '_' || c == '-' ||
			(c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
		if !isWord {
			b.WriteByte('\\')
		}
		b.WriteByte(c)
	}
	return b.String()
}

func lookup(doc []byte, key string) (string, bool) {
	res := gjson.GetBytes(doc, escapeKey(key))
	if !res.Exists() {
		return "", false
	}
	return entryValue(res), true
}

// entryValue reports values that are not JSON strings as empty, so a
// hand-edited `true` is never taken for the "true" literal.
func entryValue(v gjson.Result) string {
	if v.Type != gjson.String {
		return ""
	}
	return v.String()
}

func entries(doc []byte) map[string]string {
	out := map[string]string{}
	gjson.ParseBytes(doc).ForEach(func(k, v gjson.Result) bool {
		out[k.String()] = entryValue(v)
		return true
	})
	return out
}

// Watch reports every change of the document, including edits made by other
// processes. The file system watcher starts on the first call.
func (s *Storage) Watch(ctx context.Context) (<-chan kvx.Event, error) {
	if err := s.startWatcher(); err != nil {
		return nil, err
	}
	return s.Broadcaster.Watch(ctx)
}

func (s *Storage) startWatcher() error {
	s.watchMu.Lock()
	defer s.watchMu.Unlock()
	if s.watcher != nil {
		return nil
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.WithStack(err)
	}
	// The directory is watched since atomic writes replace the file.
	if err := w.Add(filepath.Dir(s.path)); err != nil {
		w.Close()
		return errors.WithStack(err)
	}

	s.mu.Lock()
	if doc, err := s.read(); err == nil {
		s.last = entries(doc)
	}
	s.mu.Unlock()

	s.watcher = w
	s.done = make(chan struct{})
	s.wg.Add(1)
	go s.watch(w, s.done)
	return nil
}

func (s *Storage) watch(w *fsnotify.Watcher, done <-chan struct{}) {
	defer s.wg.Done()
	ctx := context.Background()
	defer tracex.RecoverWithStackTrace(ctx, s.l, "file watcher crashed")

	for {
		select {
		case <-done:
			return
		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != filepath.Clean(s.path) {
				continue
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename) {
				s.reload(ctx)
			}
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			s.l.WithError(err).Warn(ctx, "file watcher error", attribute.String("path", s.path))
		}
	}
}

// reload diffs the document on disk against the last known entries and
// broadcasts the keys that changed.
func (s *Storage) reload(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read()
	if err != nil {
		s.l.WithError(err).Warn(ctx, "could not reload document", attribute.String("path", s.path))
		return
	}
	current := entries(doc)
	for k, v := range current {
		if prev, ok := s.last[k]; !ok || prev != v {
			s.Broadcast(kvx.Event{Key: k, Value: v, Found: true})
		}
	}
	for k := range s.last {
		if _, ok := current[k]; !ok {
			s.Broadcast(kvx.Event{Key: k})
		}
	}
	s.last = current
}

// Close stops the file watcher and closes every watch channel.
func (s *Storage) Close() error {
	s.watchMu.Lock()
	defer s.watchMu.Unlock()

	var err error
	if s.watcher != nil {
		close(s.done)
		err = s.watcher.Close()
		s.wg.Wait()
		s.watcher = nil
	}
	s.Broadcaster.Close()
	return errors.WithStack(err)
}
