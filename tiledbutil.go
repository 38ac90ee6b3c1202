package mwacal

import (
	"errors"

	tiledb "github.com/TileDB-Inc/TileDB-Go"
	stgpsr "github.com/yuin/stagparser"
)

// ArrayOpen opens a TileDB array, freeing it on any open error so callers
// never leak a partially-opened handle.
func ArrayOpen(ctx *tiledb.Context, uri string, mode tiledb.QueryType) (*tiledb.Array, error) {
	array, err := tiledb.NewArray(ctx, uri)
	if err != nil {
		return nil, err
	}

	if err := array.Open(mode); err != nil {
		array.Free()
		return nil, err
	}

	return array, nil
}

// AddFilters sequentially appends compression filters to a filter pipeline.
func AddFilters(filterList *tiledb.FilterList, filters ...*tiledb.Filter) error {
	for _, filt := range filters {
		if err := filterList.AddFilter(filt); err != nil {
			return err
		}
	}
	return nil
}

// ZstdFilter initialises the Zstandard compression filter at the given
// level.
func ZstdFilter(ctx *tiledb.Context, level int32) (*tiledb.Filter, error) {
	filt, err := tiledb.NewFilter(ctx, tiledb.TILEDB_FILTER_ZSTD)
	if err != nil {
		return nil, err
	}
	if err := filt.SetOption(tiledb.TILEDB_COMPRESSION_LEVEL, level); err != nil {
		filt.Free()
		return nil, err
	}
	return filt, nil
}

// GzipFilter initialises the deflate compression filter at the given level.
func GzipFilter(ctx *tiledb.Context, level int32) (*tiledb.Filter, error) {
	filt, err := tiledb.NewFilter(ctx, tiledb.TILEDB_FILTER_GZIP)
	if err != nil {
		return nil, err
	}
	if err := filt.SetOption(tiledb.TILEDB_COMPRESSION_LEVEL, level); err != nil {
		filt.Free()
		return nil, err
	}
	return filt, nil
}

// Lz4Filter initialises the LZ4 compression filter at the given level.
func Lz4Filter(ctx *tiledb.Context, level int32) (*tiledb.Filter, error) {
	filt, err := tiledb.NewFilter(ctx, tiledb.TILEDB_FILTER_LZ4)
	if err != nil {
		return nil, err
	}
	if err := filt.SetOption(tiledb.TILEDB_COMPRESSION_LEVEL, level); err != nil {
		filt.Free()
		return nil, err
	}
	return filt, nil
}

// BitWidthReductionFilter initialises the bit-width-reduction filter with
// the given window size. CreateAttr adds it for a `bitw(window=N)` entry in
// a field's filters tag; the solutions cube's attributes carry zstd only.
func BitWidthReductionFilter(ctx *tiledb.Context, window int32) (*tiledb.Filter, error) {
	filt, err := tiledb.NewFilter(ctx, tiledb.TILEDB_FILTER_BITWIDTH_REDUCTION)
	if err != nil {
		return nil, err
	}
	if err := filt.SetOption(tiledb.TILEDB_BIT_WIDTH_MAX_WINDOW, window); err != nil {
		filt.Free()
		return nil, err
	}
	return filt, nil
}

// AttachFilters attaches filterList to every attribute in attrs.
func AttachFilters(filterList *tiledb.FilterList, attrs ...*tiledb.Attribute) error {
	for _, attr := range attrs {
		if err := attr.SetFilterList(filterList); err != nil {
			return err
		}
	}
	return nil
}

// CreateAttr builds one TileDB attribute from a struct-tag definition
// (`tiledb:"dtype=float64,ftype=attr" filters:"zstd(level=9)"`, parsed by stagparser)
// and attaches it to schema.
// fieldName becomes the attribute name; filterDefs is the parsed filter
// pipeline for that field, tiledbDefs the parsed `dtype`/`var` attributes.
func CreateAttr(
	fieldName string,
	filterDefs []stgpsr.Definition,
	tiledbDefs map[string]stgpsr.Definition,
	schema *tiledb.ArraySchema,
	ctx *tiledb.Context,
) error {
	def, ok := tiledbDefs["dtype"]
	if !ok {
		return errors.Join(ErrCreateAttributeTdb, errors.New("dtype tag not found for field "+fieldName))
	}
	dtypeName, _ := def.Attribute("dtype")

	var tdbDtype tiledb.Datatype
	switch dtypeName {
	case "int8":
		tdbDtype = tiledb.TILEDB_INT8
	case "uint8":
		tdbDtype = tiledb.TILEDB_UINT8
	case "int16":
		tdbDtype = tiledb.TILEDB_INT16
	case "uint16":
		tdbDtype = tiledb.TILEDB_UINT16
	case "int32":
		tdbDtype = tiledb.TILEDB_INT32
	case "uint32":
		tdbDtype = tiledb.TILEDB_UINT32
	case "int64":
		tdbDtype = tiledb.TILEDB_INT64
	case "uint64":
		tdbDtype = tiledb.TILEDB_UINT64
	case "float32":
		tdbDtype = tiledb.TILEDB_FLOAT32
	case "float64":
		tdbDtype = tiledb.TILEDB_FLOAT64
	case "string":
		tdbDtype = tiledb.TILEDB_STRING_UTF8
	default:
		return errors.Join(ErrDtype, errors.New("unsupported dtype tag: "+dtypeName.(string)))
	}

	attrFilts, err := tiledb.NewFilterList(ctx)
	if err != nil {
		return errors.Join(ErrCreateAttributeTdb, err)
	}
	defer attrFilts.Free()

	for _, filter := range filterDefs {
		switch filter.Name() {
		case "zstd":
			level, _ := filter.Attribute("level")
			filt, err := ZstdFilter(ctx, int32(level.(int64)))
			if err != nil {
				return errors.Join(ErrCreateAttributeTdb, err)
			}
			defer filt.Free()
			if err := AddFilters(attrFilts, filt); err != nil {
				return errors.Join(ErrAddFilters, err)
			}
		case "gzip":
			level, _ := filter.Attribute("level")
			filt, err := GzipFilter(ctx, int32(level.(int64)))
			if err != nil {
				return errors.Join(ErrCreateAttributeTdb, err)
			}
			defer filt.Free()
			if err := AddFilters(attrFilts, filt); err != nil {
				return errors.Join(ErrAddFilters, err)
			}
		case "lz4":
			level, _ := filter.Attribute("level")
			filt, err := Lz4Filter(ctx, int32(level.(int64)))
			if err != nil {
				return errors.Join(ErrCreateAttributeTdb, err)
			}
			defer filt.Free()
			if err := AddFilters(attrFilts, filt); err != nil {
				return errors.Join(ErrAddFilters, err)
			}
		case "bitw":
			win, _ := filter.Attribute("window")
			filt, err := BitWidthReductionFilter(ctx, int32(win.(int64)))
			if err != nil {
				return errors.Join(ErrCreateAttributeTdb, err)
			}
			defer filt.Free()
			if err := AddFilters(attrFilts, filt); err != nil {
				return errors.Join(ErrAddFilters, err)
			}
		}
	}

	attr, err := tiledb.NewAttribute(ctx, fieldName, tdbDtype)
	if err != nil {
		return errors.Join(ErrCreateAttributeTdb, err)
	}
	defer attr.Free()

	if _, ok := tiledbDefs["var"]; ok {
		if err := attr.SetCellValNum(tiledb.TILEDB_VAR_NUM); err != nil {
			return errors.Join(ErrCreateAttributeTdb, err)
		}
	}

	if err := AttachFilters(attrFilts, attr); err != nil {
		return errors.Join(ErrAddFilters, err)
	}

	if err := schema.AddAttributes(attr); err != nil {
		return errors.Join(ErrCreateSchemaTdb, err)
	}

	return nil
}

// WriteArrayMetadata JSON-serialises md and attaches it to arrayURI's
// key/value metadata store.
func WriteArrayMetadata(ctx *tiledb.Context, arrayURI, key string, md any) error {
	array, err := ArrayOpen(ctx, arrayURI, tiledb.TILEDB_WRITE)
	if err != nil {
		return errors.Join(err, errors.New("error opening (w) tiledb array: "+arrayURI))
	}
	defer array.Free()
	defer array.Close()

	jsn, err := jsonDumps(md)
	if err != nil {
		return errors.Join(err, errors.New("error serialising metadata to json"))
	}

	if err := array.PutMetadata(key, jsn); err != nil {
		return errors.Join(err, errors.New("error writing metadata to array: "+arrayURI))
	}
	return nil
}
