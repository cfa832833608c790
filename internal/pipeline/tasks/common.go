// Package tasks implements the nine asset pipelines: rust, sass, tailwind,
// css, icon, inline, copy-file, copy-dir, and script. Each file implements
// pipeline.Task for one pipeline.DescriptorKind.
package tasks

import (
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"os"
	"path"
	"path/filepath"

	"github.com/jmylchreest/trunkgo/internal/pipeline"
)

// newHasher returns the hash.Hash for an IntegrityAlgorithm, defaulting to
// sha384 (the browser-recommended default) when alg is empty.
func newHasher(alg pipeline.IntegrityAlgorithm) (hash.Hash, string) {
	switch alg {
	case pipeline.IntegritySHA256:
		return sha256.New(), "sha256"
	case pipeline.IntegritySHA512:
		return sha512.New(), "sha512"
	case pipeline.IntegrityNone:
		return nil, ""
	default:
		return sha512.New384(), "sha384"
	}
}

// stageBytes writes data into rc.StagingDir at relPath, optionally hashing
// the content into the file name and computing an SRI string, and returns
// the resulting Artifact. relPath must already have passed
// LinkDescriptor.Validate's traversal check.
func stageBytes(rc *pipeline.RuntimeContext, relPath string, data []byte, withHash bool, integrityAlg pipeline.IntegrityAlgorithm) (pipeline.Artifact, error) {
	finalRel := relPath
	var hashSegment string
	if withHash && rc.Filehash {
		sum := sha256.Sum256(data)
		hashSegment = hex.EncodeToString(sum[:])[:16]
		ext := filepath.Ext(relPath)
		base := relPath[:len(relPath)-len(ext)]
		finalRel = fmt.Sprintf("%s-%s%s", base, hashSegment, ext)
	}

	stagingPath := filepath.Join(rc.StagingDir, filepath.FromSlash(finalRel))
	if err := os.MkdirAll(filepath.Dir(stagingPath), 0750); err != nil {
		return pipeline.Artifact{}, fmt.Errorf("io: %w", err)
	}
	if err := os.WriteFile(stagingPath, data, 0640); err != nil {
		return pipeline.Artifact{}, fmt.Errorf("io: %w", err)
	}

	art := pipeline.Artifact{
		StagingPath: stagingPath,
		PublicPath:  path.Join(publicBase(rc.PublicURL), filepath.ToSlash(finalRel)),
		Hash:        hashSegment,
		Size:        int64(len(data)),
	}

	if !rc.NoSRI {
		if h, name := newHasher(integrityAlg); h != nil {
			h.Write(data)
			art.Integrity = fmt.Sprintf("%s-%s", name, base64.StdEncoding.EncodeToString(h.Sum(nil)))
		}
	}

	return art, nil
}

func publicBase(publicURL string) string {
	if publicURL == "" {
		return "/"
	}
	return publicURL
}

// resolveSource joins a descriptor's href to the source directory, unless
// it is already absolute.
func resolveSource(rc *pipeline.RuntimeContext, href string) string {
	if filepath.IsAbs(href) {
		return href
	}
	return filepath.Join(rc.SourceDir, href)
}

// copyStream copies src to dst (a full path inside staging), without hashing,
// for copy-file/copy-dir's byte-for-byte mirroring contract.
func copyStream(dst, src string) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(dst), 0750); err != nil {
		return 0, err
	}
	in, err := os.Open(src)
	if err != nil {
		return 0, err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0640)
	if err != nil {
		return 0, err
	}
	defer out.Close()

	return io.Copy(out, in)
}
