// Package search locates companion data files (mwaf flag files, metafits
// metadata) by recursive directory trawl, using TileDB's VFS so the search
// works transparently against local filesystems or an object store.
package search

import (
	"fmt"
	"path/filepath"

	tiledb "github.com/TileDB-Inc/TileDB-Go"
)

// trawl matches pattern against each file's basename under uri, recursing
// into every subdirectory, accumulating matches into items.
func trawl(vfs *tiledb.VFS, pattern, uri string, items []string) ([]string, error) {
	dirs, files, err := vfs.List(uri)
	if err != nil {
		return items, err
	}

	for _, file := range files {
		match, err := filepath.Match(pattern, filepath.Base(file))
		if err != nil {
			return items, err
		}
		if match {
			items = append(items, file)
		}
	}

	for _, dir := range dirs {
		items, err = trawl(vfs, pattern, dir, items)
		if err != nil {
			return items, err
		}
	}

	return items, nil
}

func newVFS(configURI string) (*tiledb.Config, *tiledb.Context, *tiledb.VFS, error) {
	var config *tiledb.Config
	var err error

	if configURI == "" {
		config, err = tiledb.NewConfig()
	} else {
		config, err = tiledb.LoadConfig(configURI)
	}
	if err != nil {
		return nil, nil, nil, err
	}

	ctx, err := tiledb.NewContext(config)
	if err != nil {
		config.Free()
		return nil, nil, nil, err
	}

	vfs, err := tiledb.NewVFS(ctx, config)
	if err != nil {
		ctx.Free()
		config.Free()
		return nil, nil, nil, err
	}

	return config, ctx, vfs, nil
}

// FindMWAFlagFiles recursively searches uri for mwaf cotter/AOFlagger flag
// files, matching any basename of the form `*.mwaf`.
func FindMWAFlagFiles(uri, configURI string) ([]string, error) {
	return findPattern(uri, configURI, "*.mwaf")
}

// FindMetafits recursively searches uri for a metafits metadata file.
func FindMetafits(uri, configURI string) ([]string, error) {
	return findPattern(uri, configURI, "*.metafits")
}

func findPattern(uri, configURI, pattern string) ([]string, error) {
	config, ctx, vfs, err := newVFS(configURI)
	if err != nil {
		return nil, fmt.Errorf("search: opening vfs for %q: %w", uri, err)
	}
	defer vfs.Free()
	defer ctx.Free()
	defer config.Free()

	return trawl(vfs, pattern, uri, make([]string, 0))
}
