package solutions

import (
	"errors"
	"math"
	"reflect"

	tiledb "github.com/TileDB-Inc/TileDB-Go"
	stgpsr "github.com/yuin/stagparser"

	"github.com/skyflux-astro/mwacal"
)

// cellRecord is the per-(timeblock, tile, chanblock) attribute set, laid
// out real/imag interleaved per polarisation. The struct tags drive the
// reflection-based schema builder below.
type cellRecord struct {
	J00Re float64 `tiledb:"dtype=float64,ftype=attr" filters:"zstd(level=9)"`
	J00Im float64 `tiledb:"dtype=float64,ftype=attr" filters:"zstd(level=9)"`
	J01Re float64 `tiledb:"dtype=float64,ftype=attr" filters:"zstd(level=9)"`
	J01Im float64 `tiledb:"dtype=float64,ftype=attr" filters:"zstd(level=9)"`
	J10Re float64 `tiledb:"dtype=float64,ftype=attr" filters:"zstd(level=9)"`
	J10Im float64 `tiledb:"dtype=float64,ftype=attr" filters:"zstd(level=9)"`
	J11Re float64 `tiledb:"dtype=float64,ftype=attr" filters:"zstd(level=9)"`
	J11Im float64 `tiledb:"dtype=float64,ftype=attr" filters:"zstd(level=9)"`
}

// schemaAttrs walks cellRecord's fields and attaches one tiledb attribute
// per field (mwacal.CreateAttr does the stagparser-tag-to-filter-pipeline
// translation).
func schemaAttrs(schema *tiledb.ArraySchema, ctx *tiledb.Context) error {
	var rec cellRecord
	values := reflect.ValueOf(&rec).Elem()
	types := values.Type()

	filtDefs, _ := stgpsr.ParseStruct(&rec, "filters")
	tdbDefs, _ := stgpsr.ParseStruct(&rec, "tiledb")

	for i := 0; i < values.NumField(); i++ {
		name := types.Field(i).Name
		fieldTdbDefs := make(map[string]stgpsr.Definition)
		for _, v := range tdbDefs[name] {
			fieldTdbDefs[v.Name()] = v
		}
		def, ok := fieldTdbDefs["ftype"]
		if !ok {
			return errors.Join(mwacal.ErrCreateAttributeTdb, errors.New("ftype tag not found for "+name))
		}
		if ftype, _ := def.Attribute("ftype"); ftype == "dim" {
			continue
		}
		if err := mwacal.CreateAttr(name, filtDefs[name], fieldTdbDefs, schema, ctx); err != nil {
			return errors.Join(mwacal.ErrCreateAttributeTdb, err)
		}
	}
	return nil
}

// cubeSchema builds the dense 3-D (timeblock, tile, chanblock) array
// schema for a complete solution cube.
func cubeSchema(ctx *tiledb.Context, cube *CompleteCube) (*tiledb.ArraySchema, error) {
	domain, err := tiledb.NewDomain(ctx)
	if err != nil {
		return nil, errors.Join(mwacal.ErrCreateSolutionsTdb, err)
	}
	defer domain.Free()

	tbDim, err := tiledb.NewDimension(ctx, "timeblock", tiledb.TILEDB_INT32, []int32{0, int32(cube.NumTimeblocks - 1)}, int32(math.Max(1, float64(cube.NumTimeblocks))))
	if err != nil {
		return nil, errors.Join(mwacal.ErrCreateDimTdb, err)
	}
	defer tbDim.Free()

	tileDim, err := tiledb.NewDimension(ctx, "tile", tiledb.TILEDB_INT32, []int32{0, int32(cube.TotalTiles - 1)}, int32(math.Max(1, float64(cube.TotalTiles))))
	if err != nil {
		return nil, errors.Join(mwacal.ErrCreateDimTdb, err)
	}
	defer tileDim.Free()

	cbDim, err := tiledb.NewDimension(ctx, "chanblock", tiledb.TILEDB_INT32, []int32{0, int32(cube.TotalChanblocks - 1)}, int32(math.Max(1, float64(cube.TotalChanblocks))))
	if err != nil {
		return nil, errors.Join(mwacal.ErrCreateDimTdb, err)
	}
	defer cbDim.Free()

	if err := domain.AddDimensions(tbDim, tileDim, cbDim); err != nil {
		return nil, errors.Join(mwacal.ErrCreateSolutionsTdb, err)
	}

	schema, err := tiledb.NewArraySchema(ctx, tiledb.TILEDB_DENSE)
	if err != nil {
		return nil, errors.Join(mwacal.ErrCreateSchemaTdb, err)
	}

	if err := schema.SetDomain(domain); err != nil {
		return nil, errors.Join(mwacal.ErrCreateSchemaTdb, err)
	}
	if err := schema.SetCellOrder(tiledb.TILEDB_ROW_MAJOR); err != nil {
		return nil, errors.Join(mwacal.ErrCreateSchemaTdb, err)
	}
	if err := schema.SetTileOrder(tiledb.TILEDB_ROW_MAJOR); err != nil {
		return nil, errors.Join(mwacal.ErrCreateSchemaTdb, err)
	}

	if err := schemaAttrs(schema, ctx); err != nil {
		return nil, err
	}

	return schema, nil
}

// Persist writes cube as a new TileDB dense array at arrayURI and attaches
// md as key/value array metadata. The array must not
// already exist.
func Persist(ctx *tiledb.Context, arrayURI string, cube *CompleteCube, md Metadata) error {
	schema, err := cubeSchema(ctx, cube)
	if err != nil {
		return err
	}
	defer schema.Free()

	array, err := tiledb.NewArray(ctx, arrayURI)
	if err != nil {
		return errors.Join(mwacal.ErrCreateSolutionsTdb, err)
	}
	defer array.Free()

	if err := array.Create(schema); err != nil {
		return errors.Join(mwacal.ErrCreateSolutionsTdb, err)
	}

	if err := writeCells(ctx, arrayURI, cube); err != nil {
		return err
	}

	return mwacal.WriteArrayMetadata(ctx, arrayURI, "mwacal_solutions", md)
}

func writeCells(ctx *tiledb.Context, arrayURI string, cube *CompleteCube) error {
	array, err := mwacal.ArrayOpen(ctx, arrayURI, tiledb.TILEDB_WRITE)
	if err != nil {
		return errors.Join(mwacal.ErrWriteSolutionsTdb, err)
	}
	defer array.Free()
	defer array.Close()

	query, err := tiledb.NewQuery(ctx, array)
	if err != nil {
		return errors.Join(mwacal.ErrWriteSolutionsTdb, err)
	}
	defer query.Free()

	if err := query.SetLayout(tiledb.TILEDB_ROW_MAJOR); err != nil {
		return errors.Join(mwacal.ErrWriteSolutionsTdb, err)
	}

	n := len(cube.Jones)
	buffers := map[string][]float64{
		"J00Re": make([]float64, n), "J00Im": make([]float64, n),
		"J01Re": make([]float64, n), "J01Im": make([]float64, n),
		"J10Re": make([]float64, n), "J10Im": make([]float64, n),
		"J11Re": make([]float64, n), "J11Im": make([]float64, n),
	}
	for i, j := range cube.Jones {
		buffers["J00Re"][i] = real(j.J00)
		buffers["J00Im"][i] = imag(j.J00)
		buffers["J01Re"][i] = real(j.J01)
		buffers["J01Im"][i] = imag(j.J01)
		buffers["J10Re"][i] = real(j.J10)
		buffers["J10Im"][i] = imag(j.J10)
		buffers["J11Re"][i] = real(j.J11)
		buffers["J11Im"][i] = imag(j.J11)
	}
	for name, buf := range buffers {
		if _, err := query.SetDataBuffer(name, buf); err != nil {
			return errors.Join(mwacal.ErrWriteSolutionsTdb, err)
		}
	}

	subarr, err := array.NewSubarray()
	if err != nil {
		return errors.Join(mwacal.ErrWriteSolutionsTdb, err)
	}
	defer subarr.Free()

	if err := subarr.AddRangeByName("timeblock", tiledb.MakeRange(int32(0), int32(cube.NumTimeblocks-1))); err != nil {
		return errors.Join(mwacal.ErrWriteSolutionsTdb, err)
	}
	if err := subarr.AddRangeByName("tile", tiledb.MakeRange(int32(0), int32(cube.TotalTiles-1))); err != nil {
		return errors.Join(mwacal.ErrWriteSolutionsTdb, err)
	}
	if err := subarr.AddRangeByName("chanblock", tiledb.MakeRange(int32(0), int32(cube.TotalChanblocks-1))); err != nil {
		return errors.Join(mwacal.ErrWriteSolutionsTdb, err)
	}
	if err := query.SetSubarray(subarr); err != nil {
		return errors.Join(mwacal.ErrWriteSolutionsTdb, err)
	}

	if err := query.Submit(); err != nil {
		return errors.Join(mwacal.ErrWriteSolutionsTdb, err)
	}
	return query.Finalize()
}
