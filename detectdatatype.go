package posemisc

import (
	"bytes"
	"compress/bzip2"
	"compress/gzip"
	"compress/zlib"
	"io"
	"os"

	"github.com/krolaw/zipstream"
	"github.com/xi2/xz"
)

// DataType identifies the compression wrapped around a stream, if any.
type DataType byte

const (
	DataTypeInvalid DataType = iota
	DataTypeNoCompression
	DataTypeGzip
	DataTypeZip
	DataTypeXZ
	DataTypeZ
	DataTypeBZip2
)

// magicPrefixes holds the leading bytes each supported compression format
// stamps on its output.
var magicPrefixes = map[DataType][]byte{
	DataTypeGzip:  {0x1f, 0x8b, 0x08},
	DataTypeZip:   {0x50, 0x4b, 0x03, 0x04},
	DataTypeXZ:    {0xfd, 0x37, 0x7a, 0x58, 0x5a, 0x00},
	DataTypeZ:     {0x1f, 0x9d},
	DataTypeBZip2: {0x42, 0x5a, 0x68},
}

// DetectDataType reads just enough of r to classify its compression. Streams
// shorter than the longest prefix are still classified against the prefixes
// that fit.
func DetectDataType(r io.Reader) (DataType, error) {
	buff := make([]byte, 6)
	n, err := io.ReadFull(r, buff)
	if err != nil && err != io.ErrUnexpectedEOF {
		return DataTypeInvalid, err
	}

	for dt, magic := range magicPrefixes {
		if n >= len(magic) && bytes.Equal(buff[:len(magic)], magic) {
			return dt, nil
		}
	}

	return DataTypeNoCompression, nil
}

// MaybeDecompressReadCloserFromFile wraps f in the decompressor its leading
// bytes call for, or returns f itself when none is recognized. f is rewound
// after sniffing so the decompressor sees the whole stream.
func MaybeDecompressReadCloserFromFile(f *os.File) (io.ReadCloser, error) {
	dt, err := DetectDataType(f)
	if err != nil {
		return nil, err
	}

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}

	switch dt {
	case DataTypeGzip:
		return gzip.NewReader(f)
	case DataTypeZip:
		// Archives are read as their first entry, which covers the
		// one-CSV-per-archive layout the exporters produce.
		zr := zipstream.NewReader(f)
		if _, err := zr.Next(); err != nil {
			return nil, err
		}
		return &readCloserFaker{zr}, nil
	case DataTypeBZip2:
		return &readCloserFaker{bzip2.NewReader(f)}, nil
	case DataTypeXZ:
		reader, err := xz.NewReader(f, 0)
		if err != nil {
			return nil, err
		}
		return &readCloserFaker{reader}, nil
	case DataTypeZ:
		return zlib.NewReader(f)
	}

	return f, nil
}

// readCloserFaker adds a no-op Close to readers that do not need one.
type readCloserFaker struct {
	io.Reader
}

func (c *readCloserFaker) Close() error {
	return nil
}
