// Package encode serialises the text-based companion artefacts calibration
// runs produce alongside the TileDB solutions cube: the human-readable
// source-list-used sidecar and the per-run calibration summary.
package encode

import (
	"encoding/json"
	"fmt"

	tiledb "github.com/TileDB-Inc/TileDB-Go"
)

// WriteBytes writes raw bytes to fileURI through TileDB's VFS, so the
// destination may be a local path or an object store URI.
func WriteBytes(fileURI, configURI string, data []byte) (int, error) {
	var config *tiledb.Config
	var err error

	if configURI == "" {
		config, err = tiledb.NewConfig()
	} else {
		config, err = tiledb.LoadConfig(configURI)
	}
	if err != nil {
		return 0, fmt.Errorf("encode: loading tiledb config: %w", err)
	}
	defer config.Free()

	ctx, err := tiledb.NewContext(config)
	if err != nil {
		return 0, fmt.Errorf("encode: creating tiledb context: %w", err)
	}
	defer ctx.Free()

	vfs, err := tiledb.NewVFS(ctx, config)
	if err != nil {
		return 0, fmt.Errorf("encode: creating vfs: %w", err)
	}
	defer vfs.Free()

	stream, err := vfs.Open(fileURI, tiledb.TILEDB_VFS_WRITE)
	if err != nil {
		return 0, fmt.Errorf("encode: opening %q for write: %w", fileURI, err)
	}
	defer stream.Close()

	n, err := stream.Write(data)
	if err != nil {
		return 0, fmt.Errorf("encode: writing %q: %w", fileURI, err)
	}
	return n, nil
}

// WriteJSONIndent marshals data as indented JSON and writes it to fileURI.
func WriteJSONIndent(fileURI, configURI string, data any) (int, error) {
	jsn, err := json.MarshalIndent(data, "", "    ")
	if err != nil {
		return 0, fmt.Errorf("encode: marshalling json: %w", err)
	}
	return WriteBytes(fileURI, configURI, jsn)
}
