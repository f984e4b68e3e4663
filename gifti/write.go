package gifti

import (
	"bufio"
	"bytes"
	"compress/zlib"
	"encoding/base64"
	"encoding/binary"
	"encoding/xml"
	"io"
	"math"
	"os"
	"sort"
	"strconv"

	"github.com/YuminosukeSato/connectome/pkg/errors"
)

const doctype = `<!DOCTYPE GIFTI SYSTEM "http://www.nitrc.org/frs/download.php/115/gifti.dtd">` + "\n"

// 書き込み用の XML 構造。メタデータは CDATA で出力する。
type outGifti struct {
	XMLName    xml.Name       `xml:"GIFTI"`
	Version    string         `xml:"Version,attr"`
	NumArrays  int            `xml:"NumberOfDataArrays,attr"`
	MetaData   outMetaData    `xml:"MetaData"`
	LabelTable struct{}       `xml:"LabelTable"`
	DataArrays []outDataArray `xml:"DataArray"`
}

type outMetaData struct {
	MD []outMD `xml:"MD"`
}

type outMD struct {
	Name  cdata `xml:"Name"`
	Value cdata `xml:"Value"`
}

type cdata struct {
	Text string `xml:",cdata"`
}

type outDataArray struct {
	Intent             string      `xml:"Intent,attr"`
	DataType           string      `xml:"DataType,attr"`
	ArrayIndexingOrder string      `xml:"ArrayIndexingOrder,attr"`
	Dimensionality     int         `xml:"Dimensionality,attr"`
	Dim0               int         `xml:"Dim0,attr"`
	Dim1               int         `xml:"Dim1,attr,omitempty"`
	Dim2               int         `xml:"Dim2,attr,omitempty"`
	Encoding           string      `xml:"Encoding,attr"`
	Endian             string      `xml:"Endian,attr"`
	ExternalFileName   string      `xml:"ExternalFileName,attr"`
	ExternalFileOffset string      `xml:"ExternalFileOffset,attr"`
	MetaData           outMetaData `xml:"MetaData"`
	Data               string      `xml:"Data"`
}

// WriteFile encodes img and writes it to path, replacing any existing file.
func WriteFile(path string, img *Image) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.NewIOError("create", path, err)
	}

	bw := bufio.NewWriter(f)
	if err := Write(bw, img); err != nil {
		f.Close()
		return err
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

// Write encodes img as a GIfTI document. Every data array is written
// GZipBase64Binary, little-endian, row-major.
func Write(w io.Writer, img *Image) error {
	doc := outGifti{
		Version:   img.Version,
		NumArrays: len(img.Arrays),
		MetaData:  toMetaData(img.Meta),
	}
	if doc.Version == "" {
		doc.Version = "1.0"
	}

	for i, arr := range img.Arrays {
		oa, err := encodeArray(arr)
		if err != nil {
			return errors.Wrapf(err, "encode DataArray %d", i)
		}
		doc.DataArrays = append(doc.DataArrays, oa)
	}

	if _, err := io.WriteString(w, xml.Header+doctype); err != nil {
		return errors.NewIOError("write", "", err)
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return errors.NewIOError("write", "", err)
	}
	if _, err := io.WriteString(w, "\n"); err != nil {
		return errors.NewIOError("write", "", err)
	}
	return nil
}

func encodeArray(arr *DataArray) (outDataArray, error) {
	dt := arr.DataType
	if dt == "" {
		dt = Float32
	}
	if dt.size() == 0 {
		return outDataArray{}, errors.Newf("unsupported data type %q", dt)
	}

	dims := arr.Dims
	if len(dims) == 0 {
		dims = []int{len(arr.Data)}
	}
	if len(dims) > 3 {
		return outDataArray{}, errors.Newf("unsupported dimensionality %d", len(dims))
	}
	count := 1
	for _, d := range dims {
		count *= d
	}
	if count != len(arr.Data) {
		return outDataArray{}, errors.NewShapeError("gifti.Write", dims, []int{len(arr.Data)}, "data length does not match dims")
	}

	payload, err := encodeValues(arr.Data, dt)
	if err != nil {
		return outDataArray{}, err
	}

	intent := arr.Intent
	if intent == "" {
		intent = IntentNone
	}

	oa := outDataArray{
		Intent:             intent,
		DataType:           string(dt),
		ArrayIndexingOrder: "RowMajorOrder",
		Dimensionality:     len(dims),
		Encoding:           string(GZipBase64Binary),
		Endian:             "LittleEndian",
		MetaData:           toMetaData(arr.Meta),
		Data:               payload,
	}
	oa.Dim0 = dims[0]
	if len(dims) > 1 {
		oa.Dim1 = dims[1]
	}
	if len(dims) > 2 {
		oa.Dim2 = dims[2]
	}
	return oa, nil
}

// encodeValues は値を指定型のリトルエンディアンバイト列にし、zlib 圧縮して base64 化する
func encodeValues(values []float64, dt DataType) (string, error) {
	size := dt.size()
	raw := make([]byte, len(values)*size)
	for i, v := range values {
		b := raw[i*size : (i+1)*size]
		switch dt {
		case Float32:
			binary.LittleEndian.PutUint32(b, math.Float32bits(float32(v)))
		case Float64:
			binary.LittleEndian.PutUint64(b, math.Float64bits(v))
		case Int32:
			binary.LittleEndian.PutUint32(b, uint32(int32(v)))
		case Uint8:
			b[0] = uint8(v)
		}
	}

	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	if _, err := zw.Write(raw); err != nil {
		return "", errors.Wrap(err, "compress data")
	}
	if err := zw.Close(); err != nil {
		return "", errors.Wrap(err, "compress data")
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// toMetaData は出力を決定的にするためキー順に並べる
func toMetaData(meta map[string]string) outMetaData {
	keys := make([]string, 0, len(meta))
	for k := range meta {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	md := outMetaData{MD: make([]outMD, 0, len(keys))}
	for _, k := range keys {
		md.MD = append(md.MD, outMD{Name: cdata{k}, Value: cdata{meta[k]}})
	}
	return md
}

// String summarizes the image for logs.
func (img *Image) String() string {
	s := "GIfTI(arrays=" + strconv.Itoa(len(img.Arrays))
	if st := img.Structure(); st != "" {
		s += ", structure=" + string(st)
	}
	return s + ")"
}
