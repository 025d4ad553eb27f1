// Copyright 2026 The iMessage Exporter Authors
// SPDX-License-Identifier: Apache-2.0

package export

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
)

// Options configure an exporter.
type Options struct {
	// Path is the output directory. Created if missing.
	Path string

	// Compress wraps each file in a zstd stream and appends ".zst"
	// to its name.
	Compress bool

	// Logger receives per-file events. Nil discards them.
	Logger *slog.Logger
}

// outputFile is one open per-chat destination. The write path is
// bufio on top of the optional zstd encoder on top of the file, so a
// flush has to walk the chain outside-in.
type outputFile struct {
	file    *os.File
	zstd    *zstd.Encoder
	buf     *bufio.Writer
	records int64
}

func (o *outputFile) Write(p []byte) (int, error) { return o.buf.Write(p) }

func (o *outputFile) close() error {
	var errs []error
	if err := o.buf.Flush(); err != nil {
		errs = append(errs, err)
	}
	if o.zstd != nil {
		if err := o.zstd.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := o.file.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// fileSet lazily opens one file per chat.
type fileSet struct {
	opts  Options
	ext   string
	files map[int64]*outputFile
}

// chatOrphaned keys messages that have no chat_message_join row.
const chatOrphaned int64 = -1

func newFileSet(opts Options, ext string) (*fileSet, error) {
	if opts.Path == "" {
		return nil, fmt.Errorf("export: options have no output path")
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if err := os.MkdirAll(opts.Path, 0o755); err != nil {
		return nil, fmt.Errorf("export: create output directory: %w", err)
	}
	return &fileSet{opts: opts, ext: ext, files: make(map[int64]*outputFile)}, nil
}

func (s *fileSet) name(chatID int64) string {
	base := "orphaned"
	if chatID != chatOrphaned {
		base = fmt.Sprintf("chat_%d", chatID)
	}
	name := base + s.ext
	if s.opts.Compress {
		name += ".zst"
	}
	return filepath.Join(s.opts.Path, name)
}

// get returns the open file for chatID, creating it on first use. The
// second result is true when the file was just created, which is when
// format headers should be written.
func (s *fileSet) get(chatID int64) (*outputFile, bool, error) {
	if f, ok := s.files[chatID]; ok {
		return f, false, nil
	}
	path := s.name(chatID)
	file, err := os.Create(path)
	if err != nil {
		return nil, false, fmt.Errorf("export: create %q: %w", path, err)
	}
	out := &outputFile{file: file}
	if s.opts.Compress {
		zw, err := zstd.NewWriter(file)
		if err != nil {
			file.Close()
			return nil, false, fmt.Errorf("export: zstd writer for %q: %w", path, err)
		}
		out.zstd = zw
		out.buf = bufio.NewWriter(zw)
	} else {
		out.buf = bufio.NewWriter(file)
	}
	s.files[chatID] = out
	s.opts.Logger.Debug("opened export file", "path", path)
	return out, true, nil
}

// closeAll closes every open file, reporting the first failure but
// attempting all of them.
func (s *fileSet) closeAll() error {
	var errs []error
	for chatID, f := range s.files {
		if err := f.close(); err != nil {
			errs = append(errs, fmt.Errorf("export: close %q: %w", s.name(chatID), err))
		}
	}
	s.files = make(map[int64]*outputFile)
	return errors.Join(errs...)
}
