// Package archive streams a session's working directory as a zip archive.
package archive

import (
	"archive/zip"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// Packager streams every file under a directory into sink as an archive.
// Paths inside the archive are relative to the directory itself, so the
// archive root holds the directory's contents, not the directory name.
type Packager interface {
	Stream(dir string, sink io.Writer) error
}

// ZipPackager packages a directory as a zip stream.
type ZipPackager struct{}

// NewZipPackager creates a zip packager.
func NewZipPackager() *ZipPackager {
	return &ZipPackager{}
}

// Stream walks dir recursively and writes a zip archive to sink. Walk and
// write errors propagate; the output is never silently truncated.
func (z *ZipPackager) Stream(dir string, sink io.Writer) error {
	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("failed to stat archive root: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("archive root %s is not a directory", dir)
	}

	zw := zip.NewWriter(sink)

	walkErr := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}

		info, err := d.Info()
		if err != nil {
			return err
		}

		header, err := zip.FileInfoHeader(info)
		if err != nil {
			return err
		}
		header.Name = filepath.ToSlash(rel)
		header.Method = zip.Deflate

		w, err := zw.CreateHeader(header)
		if err != nil {
			return err
		}

		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()

		_, err = io.Copy(w, f)
		return err
	})

	if walkErr != nil {
		zw.Close()
		return fmt.Errorf("failed to stream archive: %w", walkErr)
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("failed to finalize archive: %w", err)
	}

	return nil
}
