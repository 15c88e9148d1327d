package main

import (
	"fmt"
	"log/slog"
	"os"
	"sync"
)

// Logger はログファイルへの slog 出力を管理する。
// SIGHUP でのローテーションのためにファイルを開き直せる。
type Logger struct {
	mu       sync.Mutex
	filename string
	debug    bool
	file     *os.File
}

// NewLogger creates a new logger that writes to the specified file
func NewLogger(filename string, debug bool) (*Logger, error) {
	l := &Logger{
		filename: filename,
		debug:    debug,
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.reopen(); err != nil {
		return nil, err
	}
	return l, nil
}

// reopen はログファイルを開き、slogのデフォルトロガーを差し替える。
// 呼び出し側で mu を保持していること。
func (l *Logger) reopen() error {
	if l.file != nil {
		l.file.Close()
	}

	// Open log file with append mode
	file, err := os.OpenFile(l.filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		return fmt.Errorf("ログファイルを開けませんでした: %w", err)
	}
	l.file = file

	level := slog.LevelInfo
	if l.debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(file, &slog.HandlerOptions{Level: level})))
	return nil
}

// Rotate closes and reopens the log file
func (l *Logger) Rotate() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return nil // No log file to rotate
	}
	if err := l.reopen(); err != nil {
		return fmt.Errorf("ログファイルを再オープンできませんでした: %w", err)
	}
	return nil
}

// Close はログファイルを閉じる
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}
