// Package image wraps a generated root filesystem archive into a
// single-layer container image tarball that `docker load` accepts.
package image

import (
	"fmt"

	"github.com/google/go-containerregistry/pkg/name"
	v1 "github.com/google/go-containerregistry/pkg/v1"
	"github.com/google/go-containerregistry/pkg/v1/empty"
	"github.com/google/go-containerregistry/pkg/v1/mutate"
	"github.com/google/go-containerregistry/pkg/v1/tarball"
)

// DefaultArch is the architecture recorded in the image config.
const DefaultArch = "amd64"

// Options contains the options for exporting an image.
type Options struct {
	Archive string // gzip-compressed tar used as the only layer
	Output  string // image tarball path
	Tag     string // reference such as "lfsg/rootfs:latest"
	Arch    string // defaults to DefaultArch
}

// Export writes an image built from opts.Archive and returns its digest.
func Export(opts Options) (v1.Hash, error) {
	tag, err := name.NewTag(opts.Tag)
	if err != nil {
		return v1.Hash{}, fmt.Errorf("failed to parse image tag: %w", err)
	}
	arch := opts.Arch
	if arch == "" {
		arch = DefaultArch
	}

	layer, err := tarball.LayerFromFile(opts.Archive)
	if err != nil {
		return v1.Hash{}, fmt.Errorf("failed to read layer: %w", err)
	}
	img, err := mutate.AppendLayers(empty.Image, layer)
	if err != nil {
		return v1.Hash{}, fmt.Errorf("failed to append layer: %w", err)
	}

	cf, err := img.ConfigFile()
	if err != nil {
		return v1.Hash{}, fmt.Errorf("failed to read image config: %w", err)
	}
	cf = cf.DeepCopy()
	cf.OS = "linux"
	cf.Architecture = arch
	img, err = mutate.ConfigFile(img, cf)
	if err != nil {
		return v1.Hash{}, fmt.Errorf("failed to set image config: %w", err)
	}

	if err := tarball.WriteToFile(opts.Output, tag, img); err != nil {
		return v1.Hash{}, fmt.Errorf("failed to write image: %w", err)
	}
	digest, err := img.Digest()
	if err != nil {
		return v1.Hash{}, fmt.Errorf("failed to compute image digest: %w", err)
	}
	return digest, nil
}
