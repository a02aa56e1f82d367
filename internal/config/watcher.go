package config

import (
	"context"
	"log/slog"
	"math/rand"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const (
	restartBackoffBase = 250 * time.Millisecond
	restartBackoffMax  = 5 * time.Second
	debounceDelay      = 250 * time.Millisecond
)

// Watcher перечитывает операционную часть конфигурации из override-файла
// при его изменении и рассылает обновлённый Config подписчикам.
// connection_string/instance_id/instance_name остаются как были заданы
// при Load — Watcher их не трогает.
type Watcher struct {
	path   string
	logger *slog.Logger

	mu   sync.RWMutex
	base Config

	subsMu sync.Mutex
	subs   []chan Config
}

// NewWatcher создаёт наблюдателя, отдающего base с подменённой
// операционной частью на каждое успешное чтение path.
func NewWatcher(path string, base Config, logger *slog.Logger) *Watcher {
	return &Watcher{path: path, base: base, logger: logger}
}

// Current возвращает последнюю применённую конфигурацию.
func (w *Watcher) Current() Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.base
}

// Subscribe регистрирует канал, получающий каждую успешно применённую
// конфигурацию. buffer — размер очереди; при переполнении самое старое
// значение в очереди вытесняется новым.
func (w *Watcher) Subscribe(buffer int) chan Config {
	ch := make(chan Config, buffer)
	w.subsMu.Lock()
	w.subs = append(w.subs, ch)
	w.subsMu.Unlock()
	return ch
}

func (w *Watcher) publish(cfg Config) {
	w.subsMu.Lock()
	defer w.subsMu.Unlock()
	for _, ch := range w.subs {
		select {
		case ch <- cfg:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- cfg:
			default:
			}
		}
	}
}

func (w *Watcher) reload() {
	upd, err := parseOverrideFile(w.path)
	if err != nil {
		if w.logger != nil {
			w.logger.Warn("config override reload failed", "path", w.path, "error", err)
		}
		return
	}
	w.mu.RLock()
	next := w.base.Reloadable(upd)
	w.mu.RUnlock()
	if err := next.Validate(); err != nil {
		if w.logger != nil {
			w.logger.Warn("config override rejected", "path", w.path, "error", err)
		}
		return
	}

	w.mu.Lock()
	w.base = next
	w.mu.Unlock()

	if w.logger != nil {
		w.logger.Info("config override applied", "path", w.path)
	}
	w.publish(next)
}

// Watch следит за override-файлом до отмены ctx, самовосстанавливаясь
// при сбоях fsnotify с экспоненциальной задержкой.
func (w *Watcher) Watch(ctx context.Context) error {
	dir := filepath.Dir(w.path)
	file := filepath.Base(w.path)

	backoff := restartBackoffBase
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	var timerMu sync.Mutex
	var timer *time.Timer
	debounce := func() {
		timerMu.Lock()
		defer timerMu.Unlock()
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(debounceDelay, w.reload)
	}

	for {
		if ctx.Err() != nil {
			return nil
		}

		fw, err := fsnotify.NewWatcher()
		if err != nil {
			if w.logger != nil {
				w.logger.Warn("config watch init failed", "error", err)
			}
			if !sleepBackoff(ctx, &backoff, rng) {
				return nil
			}
			continue
		}
		if err := fw.Add(dir); err != nil {
			_ = fw.Close()
			if w.logger != nil {
				w.logger.Warn("config watch add failed", "dir", dir, "error", err)
			}
			if !sleepBackoff(ctx, &backoff, rng) {
				return nil
			}
			continue
		}

		backoff = restartBackoffBase
		broken := false
		for !broken {
			select {
			case <-ctx.Done():
				_ = fw.Close()
				return nil
			case ev, ok := <-fw.Events:
				if !ok {
					broken = true
					break
				}
				if strings.EqualFold(filepath.Base(ev.Name), file) {
					debounce()
				}
			case ferr, ok := <-fw.Errors:
				if !ok {
					broken = true
					break
				}
				if w.logger != nil {
					w.logger.Warn("config watch error", "error", ferr)
				}
			}
		}
		_ = fw.Close()
		if ctx.Err() != nil {
			return nil
		}
		if !sleepBackoff(ctx, &backoff, rng) {
			return nil
		}
	}
}

func sleepBackoff(ctx context.Context, backoff *time.Duration, rng *rand.Rand) bool {
	wait := *backoff + time.Duration(rng.Int63n(int64(*backoff/2)+1))
	if *backoff < restartBackoffMax {
		*backoff *= 2
		if *backoff > restartBackoffMax {
			*backoff = restartBackoffMax
		}
	}
	select {
	case <-ctx.Done():
		return false
	case <-time.After(wait):
		return true
	}
}
