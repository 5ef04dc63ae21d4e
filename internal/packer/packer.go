// Package packer implements pack_outputs (spec.md §4.6): given named
// intermediate output directories, produces content-addressed tar
// archives at final destinations. It follows the "accumulate then
// return in input order" shape of the teacher's
// internal/deps.MergeBidirectionalTrees: walk a slice once, build a
// result slice of the same length, fail fast.
package packer

import (
	"archive/tar"
	"crypto/sha512"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/opencontainers/go-digest"

	"github.com/warpsys/warpforge/internal/werr"
)

// OutputPacktype selects the pack format for one intermediate output.
// Tar is the only implemented format (spec.md's Non-goals explicitly
// exclude other output pack formats).
type OutputPacktype string

const OutputPacktypeTar OutputPacktype = "tar"

// IntermediateOutput names one gathered step or plot output still
// living at a host path, awaiting packing.
type IntermediateOutput struct {
	Name     string
	HostPath string
	Packtype OutputPacktype
}

// Output is a packed, content-addressed result (spec.md §3.5).
type Output struct {
	Name   string
	Digest string // "sha384:<hex>"
}

// PackOutputs packs each intermediate in order into destRoot, returning
// the Output vector in the same order (spec.md §4.6). Any failure stops
// the whole batch and propagates as an error; outputs already written to
// destRoot before the failure are left in place and are not removed.
func PackOutputs(destRoot string, intermediates []IntermediateOutput) ([]Output, error) {
	if err := os.MkdirAll(destRoot, 0o755); err != nil {
		return nil, werr.RuntimeError(err, "create output destination %s", destRoot)
	}

	outputs := make([]Output, 0, len(intermediates))
	for _, in := range intermediates {
		if in.Packtype != OutputPacktypeTar {
			return nil, werr.SetupCauseless("output '%s': unsupported pack format '%s'", in.Name, in.Packtype)
		}

		dg, err := packTar(destRoot, in.Name, in.HostPath)
		if err != nil {
			return nil, err
		}
		outputs = append(outputs, Output{Name: in.Name, Digest: dg})
	}
	return outputs, nil
}

// packTar tars hostPath (a directory) into destRoot/<name>.tar and
// returns its content digest. The digest is computed over the tar bytes
// as written, so two runs over byte-identical directory contents
// (identical file order, mode, mtime) produce the same archive and the
// same digest — the reproducibility spec.md §8's Determinism invariant
// asks of output hashes "given reproducible images."
func packTar(destRoot, name, hostPath string) (string, error) {
	destPath := filepath.Join(destRoot, name+".tar")
	f, err := os.Create(destPath)
	if err != nil {
		return "", classifyIOError(err, fmt.Sprintf("create archive for output '%s'", name))
	}
	defer f.Close()

	dg, err := archiveAndDigest(f, hostPath)
	if err != nil {
		return "", werr.RuntimeError(err, "archive output '%s'", name)
	}
	return dg, nil
}

// DigestTree computes the same sha384 content digest PackOutputs would
// produce for hostPath, without writing a permanent archive. Used by
// internal/plotexec to log a per-step output digest (spec.md §4.5 step
// 7) before the plot-level output actually gets packed at finalization.
func DigestTree(hostPath string) (string, error) {
	dg, err := archiveAndDigest(io.Discard, hostPath)
	if err != nil {
		return "", werr.RuntimeError(err, "digest output tree %s", hostPath)
	}
	return dg, nil
}

func archiveAndDigest(w io.Writer, hostPath string) (string, error) {
	hasher := sha512.New384()
	mw := io.MultiWriter(w, hasher)
	tw := tar.NewWriter(mw)

	if err := addTree(tw, hostPath); err != nil {
		return "", err
	}
	if err := tw.Close(); err != nil {
		return "", err
	}

	dg := digest.NewDigestFromBytes(digest.SHA384, hasher.Sum(nil))
	return dg.String(), nil
}

// addTree walks root and writes every regular file and directory into
// tw, with paths relative to root and sorted, so archive member order
// does not depend on filesystem iteration order.
func addTree(tw *tar.Writer, root string) error {
	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == root {
			return nil
		}
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return err
	}
	sort.Strings(paths)

	for _, path := range paths {
		info, err := os.Lstat(path)
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}

		hdr, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return err
		}
		hdr.Name = filepath.ToSlash(rel)

		if info.IsDir() {
			hdr.Name += "/"
		}
		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}
		if info.Mode().IsRegular() {
			if err := copyFileInto(tw, path); err != nil {
				return err
			}
		}
	}
	return nil
}

func copyFileInto(tw *tar.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = io.Copy(tw, f)
	return err
}

func classifyIOError(err error, what string) error {
	if os.IsPermission(err) {
		return werr.SetupError(err, "%s", what)
	}
	return werr.RuntimeError(err, "%s", what)
}
