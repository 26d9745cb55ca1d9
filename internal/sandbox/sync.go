package sandbox

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/zeebo/blake3"
)

// Syncer pushes and pulls a project tree to/from a VM as a base64-wrapped
// tar.gz stream, crossing the VM boundary without shell-quoting hazards
// (spec §6 "Wire to VM").
type Syncer struct {
	CLI      *CLI
	Excludes []string
}

func (s *Syncer) excludes() []string {
	if s.Excludes != nil {
		return s.Excludes
	}
	return defaultExcludes
}

func (s *Syncer) excluded(relPath string) bool {
	for _, pattern := range s.excludes() {
		if ok, _ := doublestar.Match(pattern, relPath); ok {
			return true
		}
	}
	return false
}

// Push streams the local project tree at dir into the VM at
// /home/user/project (spec §4.4 step 3).
func (s *Syncer) Push(ctx context.Context, vmName, dir string) (contentHash string, err error) {
	archive, hash, err := s.tarDir(dir)
	if err != nil {
		return "", &Error{Kind: ErrSyncFailed, Message: err.Error()}
	}
	encoded := base64.StdEncoding.EncodeToString(archive)
	res, err := s.CLI.ExecInVM(ctx, vmName, []string{
		"sh", "-c", "mkdir -p /home/user/project && base64 -d | tar -xzf - -C /home/user/project",
	}, []byte(encoded))
	if err != nil || res.ExitCode != 0 {
		return "", &Error{Kind: ErrSyncFailed, Message: fmt.Sprintf("push: %v (exit=%d)", err, exitOf(res))}
	}
	return hash, nil
}

// Pull streams the VM's project tree back into dir. A pull failure
// after a successful agent turn is the caller's concern to downgrade
// to a warning (spec §4.4 Failure semantics); Pull itself always
// reports the real error.
func (s *Syncer) Pull(ctx context.Context, vmName, dir string) error {
	res, err := s.CLI.ExecInVM(ctx, vmName, []string{
		"sh", "-c", "cd /home/user/project && tar -czf - . | base64",
	}, nil)
	if err != nil {
		return &Error{Kind: ErrSyncFailed, Message: err.Error()}
	}
	decoded, err := base64.StdEncoding.DecodeString(res.Out)
	if err != nil {
		return &Error{Kind: ErrSyncFailed, Message: fmt.Sprintf("decode pull stream: %v", err)}
	}
	if err := s.untarInto(dir, decoded); err != nil {
		return &Error{Kind: ErrSyncFailed, Message: err.Error()}
	}
	return nil
}

func exitOf(r *ExecResult) int {
	if r == nil {
		return -1
	}
	return r.ExitCode
}

// tarDir archives dir (skipping excluded paths) and returns the gzipped
// tar bytes plus a blake3 content hash of the tar stream, used to
// verify push/pull integrity (spec §4.4's sync is otherwise unverified;
// grounded on the teacher's blake3 artifact hashing).
func (s *Syncer) tarDir(dir string) ([]byte, string, error) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	hasher := blake3.New()

	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		if s.excluded(rel) {
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		hdr, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return err
		}
		hdr.Name = rel
		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		mw := io.MultiWriter(tw, hasher)
		_, err = io.Copy(mw, f)
		return err
	})
	if err != nil {
		return nil, "", err
	}
	if err := tw.Close(); err != nil {
		return nil, "", err
	}
	if err := gz.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), fmt.Sprintf("%x", hasher.Sum(nil)), nil
}

func (s *Syncer) untarInto(dir string, data []byte) error {
	gz, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return err
	}
	defer gz.Close()
	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		target := filepath.Join(dir, hdr.Name)
		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return err
			}
			f, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, os.FileMode(hdr.Mode))
			if err != nil {
				return err
			}
			if _, err := io.Copy(f, tr); err != nil {
				f.Close()
				return err
			}
			f.Close()
		}
	}
}
