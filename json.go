package mwacal

import (
	"encoding/json"

	tiledb "github.com/TileDB-Inc/TileDB-Go"
)

// WriteJSON serialises data to a JSON file via TileDB's VFS, so the
// destination can be a local path or an object store (s3://, etc), through
// the same TileDB layer the solutions array is written with.
func WriteJSON(fileURI, configURI string, data any) (int, error) {
	var config *tiledb.Config
	var err error

	if configURI == "" {
		config, err = tiledb.NewConfig()
		if err != nil {
			return 0, err
		}
	} else {
		config, err = tiledb.LoadConfig(configURI)
		if err != nil {
			return 0, err
		}
	}
	defer config.Free()

	ctx, err := tiledb.NewContext(config)
	if err != nil {
		return 0, err
	}
	defer ctx.Free()

	vfs, err := tiledb.NewVFS(ctx, config)
	if err != nil {
		return 0, err
	}
	defer vfs.Free()

	stream, err := vfs.Open(fileURI, tiledb.TILEDB_VFS_WRITE)
	if err != nil {
		return 0, err
	}
	defer stream.Close()

	jsn, err := json.MarshalIndent(data, "", "    ")
	if err != nil {
		return 0, err
	}

	n, err := stream.Write(jsn)
	if err != nil {
		return 0, err
	}
	return n, nil
}

// jsonDumps constructs a compact JSON string of data, used for array
// key/value metadata where the stored value is a string rather than a file.
func jsonDumps(data any) (string, error) {
	jsn, err := json.Marshal(data)
	if err != nil {
		return "", err
	}
	return string(jsn), nil
}

// jsonIndentDumps is the indented variant of jsonDumps. Nothing in this
// module calls it; the run-summary sidecar is written by
// encode.WriteJSONIndent.
func jsonIndentDumps(data any) (string, error) {
	jsn, err := json.MarshalIndent(data, "", "    ")
	if err != nil {
		return "", err
	}
	return string(jsn), nil
}
