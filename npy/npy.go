// Package npy reads and writes NumPy .npy files as gonum matrices on top of
// github.com/sbinet/npyio. Arrays hold float64 values ('<f8' or '>f8') and
// have at most two dimensions; a 1-d array is read as a single column and a
// 0-d array as a 1×1 matrix.
package npy

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"reflect"

	"github.com/YuminosukeSato/connectome/pkg/errors"
	"github.com/sbinet/npyio"
	"gonum.org/v1/gonum/mat"
)

var float64Type = reflect.TypeOf(float64(0))

// WriteFile writes m to path as a 2-d float64 array in C order.
func WriteFile(path string, m mat.Matrix) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.NewIOError("create", path, err)
	}

	bw := bufio.NewWriter(f)
	if err := Write(bw, m); err != nil {
		f.Close()
		return errors.NewIOError("write", path, err)
	}
	if err := bw.Flush(); err != nil {
		f.Close()
		return errors.NewIOError("write", path, err)
	}
	if err := f.Close(); err != nil {
		return errors.NewIOError("close", path, err)
	}
	return nil
}

// Write encodes m as a 2-d float64 array.
func Write(w io.Writer, m mat.Matrix) error {
	dense, ok := m.(*mat.Dense)
	if !ok {
		dense = mat.DenseCopyOf(m)
	}
	return errors.WithStack(npyio.Write(w, dense))
}

// ReadFile reads an .npy file into a matrix.
func ReadFile(path string) (*mat.Dense, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.NewIOError("read", path, err)
	}
	return decode(b, path)
}

// Read decodes an .npy stream into a matrix.
func Read(r io.Reader) (*mat.Dense, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return decode(b, "")
}

// decode はメモリ上のバイト列から読む。npyio は短い読み込みを検出しないため、
// データ長はここで確かめる。
func decode(b []byte, path string) (*mat.Dense, error) {
	br := bytes.NewReader(b)

	var nr *npyio.Reader
	err := errors.SafeExecute("npy.Read", func() error {
		var err error
		nr, err = npyio.NewReader(br)
		return err
	})
	if err != nil {
		return nil, errors.NewParseError(path, 0, 0, "invalid header: "+err.Error())
	}

	descr := nr.Header.Descr
	if npyio.TypeFrom(descr.Type) != float64Type {
		return nil, errors.NewParseError(path, 0, 0, fmt.Sprintf("unsupported dtype %q, want float64", descr.Type))
	}
	if len(descr.Shape) > 2 {
		return nil, errors.NewParseError(path, 0, 0, fmt.Sprintf("cannot read %d-d array as a matrix", len(descr.Shape)))
	}
	count := 1
	for _, d := range descr.Shape {
		count *= d
	}
	if count == 0 {
		return nil, errors.NewParseError(path, 0, 0, fmt.Sprintf("empty array of shape %v", descr.Shape))
	}
	if want := 8 * count; br.Len() < want {
		return nil, errors.NewParseError(path, 0, 0, fmt.Sprintf("expected %d data bytes, found %d", want, br.Len()))
	}

	var m mat.Dense
	if err := nr.Read(&m); err != nil {
		return nil, errors.NewParseError(path, 0, 0, err.Error())
	}
	return &m, nil
}
