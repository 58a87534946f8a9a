package ofd

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zip"
	"github.com/klauspost/compress/zstd"
)

type Compression uint16

const (
	// CompAuto follows Options.Compress: deflate when set, store otherwise.
	CompAuto Compression = iota
	CompStore
	CompDeflate
	// CompZSTD writes entries with ZIP method 93. Not every OFD consumer
	// can open such containers.
	CompZSTD
)

const DefaultCompressionLevel = flate.DefaultCompression

func (c Compression) String() string {
	switch c {
	case CompAuto:
		return "auto"
	case CompStore:
		return "store"
	case CompDeflate:
		return "deflate"
	case CompZSTD:
		return "zstd"
	default:
		return "unknown"
	}
}

// method maps c to a ZIP method id; compress resolves CompAuto.
func (c Compression) method(compress bool) (uint16, error) {
	switch c {
	case CompAuto:
		if compress {
			return zip.Deflate, nil
		}
		return zip.Store, nil
	case CompStore:
		return zip.Store, nil
	case CompDeflate:
		return zip.Deflate, nil
	case CompZSTD:
		return zstd.ZipMethodWinZip, nil
	default:
		return 0, fmt.Errorf("%w: unknown compression %d", ErrInvalidArgument, c)
	}
}

// Function variables for testing injection.
var (
	zipCreateHeader = func(zw *zip.Writer, fh *zip.FileHeader) (io.Writer, error) { return zw.CreateHeader(fh) }
	zipClose        = func(zw *zip.Writer) error { return zw.Close() }
	zipOpen         = func(zf *zip.File) (io.ReadCloser, error) { return zf.Open() }
	readAll         = io.ReadAll
)

// ctxReader fails reads once ctx is done.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}

// WriteArchive writes a as a ZIP container to w. Entries are emitted in
// case-insensitive lexicographic order. With CompAuto entries are deflated.
func WriteArchive(ctx context.Context, w io.Writer, a *Archive, opts ...WriteOption) error {
	if a == nil {
		return fmt.Errorf("%w: archive is nil", ErrInvalidArgument)
	}
	return writeContainer(ctx, w, a, true, newWriteConfig(opts))
}

func writeContainer(ctx context.Context, w io.Writer, a *Archive, compress bool, cfg writeConfig) error {
	if w == nil {
		return fmt.Errorf("%w: writer is nil", ErrInvalidArgument)
	}
	method, err := cfg.compression.method(compress)
	if err != nil {
		return err
	}
	var modTime time.Time
	if cfg.modTime != nil {
		modTime = *cfg.modTime
	}

	zw := zip.NewWriter(w)
	level := cfg.level
	zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, level)
	})
	zw.RegisterCompressor(zstd.ZipMethodWinZip, zstd.ZipCompressor())

	for _, name := range a.Names() {
		if err := ctx.Err(); err != nil {
			_ = zipClose(zw)
			return err
		}
		data, _ := a.Lookup(name)
		fh := &zip.FileHeader{Name: name, Method: method}
		if !modTime.IsZero() {
			fh.Modified = modTime
		}
		ew, err := zipCreateHeader(zw, fh)
		if err != nil {
			_ = zipClose(zw)
			return err
		}
		if _, err := ew.Write(data); err != nil {
			_ = zipClose(zw)
			return err
		}
	}
	if err := zipClose(zw); err != nil {
		return err
	}
	cfg.logger.Debug("ofd: container written", "entries", a.Len(), "compression", compressionMethodName(method))
	return nil
}

func compressionMethodName(m uint16) string {
	switch m {
	case zip.Store:
		return "store"
	case zip.Deflate:
		return "deflate"
	case zstd.ZipMethodWinZip:
		return "zstd"
	default:
		return "unknown"
	}
}

// Load buffers the whole container from r and unpacks it into an Archive.
// Directory entries are skipped; on duplicate names the later entry wins.
func Load(ctx context.Context, r io.Reader, opts ...ReadOption) (*Archive, error) {
	if r == nil {
		return nil, fmt.Errorf("%w: reader is nil", ErrInvalidArgument)
	}
	cfg := newReadConfig(opts)
	buf, err := readAll(io.LimitReader(ctxReader{ctx: ctx, r: r}, cfg.limits.MaxContainerSize+1))
	if err != nil {
		return nil, err
	}
	if int64(len(buf)) > cfg.limits.MaxContainerSize {
		return nil, fmt.Errorf("%w: container larger than %d bytes", ErrLimitExceeded, cfg.limits.MaxContainerSize)
	}
	return loadBytes(ctx, buf, cfg)
}

func loadBytes(ctx context.Context, buf []byte, cfg readConfig) (*Archive, error) {
	zr, err := zip.NewReader(bytes.NewReader(buf), int64(len(buf)))
	// Insecure entry names come back with a usable reader; they are
	// normalized below.
	if zr == nil {
		return nil, fmt.Errorf("%w: not a zip container: %v", ErrMalformed, err)
	}
	zr.RegisterDecompressor(zstd.ZipMethodWinZip, zstd.ZipDecompressor())

	a := newArchive()
	var total uint64
	for _, zf := range zr.File {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		name := NormalizePath(zf.Name)
		if name == "" || zf.FileInfo().IsDir() || baseName(name) == "" {
			continue
		}
		if a.Len() >= cfg.limits.MaxEntries && !a.Contains(name) {
			return nil, fmt.Errorf("%w: more than %d entries", ErrLimitExceeded, cfg.limits.MaxEntries)
		}
		if zf.UncompressedSize64 > cfg.limits.MaxEntrySize {
			return nil, fmt.Errorf("%w: entry %q is %d bytes", ErrLimitExceeded, name, zf.UncompressedSize64)
		}
		data, err := readEntry(zf, cfg.limits.MaxEntrySize)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", name, err)
		}
		total += uint64(len(data))
		if total > cfg.limits.MaxTotalSize {
			return nil, fmt.Errorf("%w: decompressed container exceeds %d bytes", ErrLimitExceeded, cfg.limits.MaxTotalSize)
		}
		a.put(name, data)
	}
	cfg.logger.Debug("ofd: container loaded", "bytes", len(buf), "entries", a.Len())
	return a, nil
}

// readEntry decompresses zf, rejecting output beyond limit bytes.
func readEntry(zf *zip.File, limit uint64) ([]byte, error) {
	rc, err := zipOpen(zf)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	b, err := readAll(io.LimitReader(rc, int64(limit)+1))
	if err != nil {
		return nil, err
	}
	if uint64(len(b)) > limit {
		return nil, fmt.Errorf("%w: entry expanded beyond %d bytes", ErrLimitExceeded, limit)
	}
	return b, nil
}
