// Package gifti reads and writes GIfTI surface data files (.func.gii,
// .shape.gii). Only the subset used for per-vertex statistic maps is
// supported: inline data arrays in ASCII, Base64Binary or
// GZipBase64Binary encoding with FLOAT32, FLOAT64, INT32 or UINT8
// elements. External data files and label tables are not interpreted.
package gifti

import (
	"bytes"
	"compress/gzip"
	"compress/zlib"
	"encoding/base64"
	"encoding/binary"
	"encoding/xml"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/YuminosukeSato/connectome/pkg/errors"
)

// DataType はデータ配列の要素型
type DataType string

const (
	Float32 DataType = "NIFTI_TYPE_FLOAT32"
	Float64 DataType = "NIFTI_TYPE_FLOAT64"
	Int32   DataType = "NIFTI_TYPE_INT32"
	Uint8   DataType = "NIFTI_TYPE_UINT8"
)

func (t DataType) size() int {
	switch t {
	case Float32, Int32:
		return 4
	case Float64:
		return 8
	case Uint8:
		return 1
	default:
		return 0
	}
}

// Encoding はデータ配列の符号化方式
type Encoding string

const (
	ASCII            Encoding = "ASCII"
	Base64Binary     Encoding = "Base64Binary"
	GZipBase64Binary Encoding = "GZipBase64Binary"
)

// Structure は AnatomicalStructurePrimary メタデータの値
type Structure string

const (
	CortexLeft  Structure = "CortexLeft"
	CortexRight Structure = "CortexRight"
)

const (
	// IntentNone は統計マップなど意味付けのないデータ配列
	IntentNone = "NIFTI_INTENT_NONE"

	metaName      = "Name"
	metaStructure = "AnatomicalStructurePrimary"
)

// Image は GIfTI ファイル1つ分の内容
type Image struct {
	Version string
	Meta    map[string]string
	Arrays  []*DataArray
}

// DataArray はデコード済みのデータ配列。要素は型によらず float64 で保持し、
// 2次元配列は行優先で並べる。
type DataArray struct {
	Intent   string
	DataType DataType
	Dims     []int
	Meta     map[string]string
	Data     []float64
}

// Name returns the array's Name metadata entry.
func (a *DataArray) Name() string {
	return a.Meta[metaName]
}

// NewScalarImage builds a single-array image holding one value per vertex,
// labelled with name and the given hemisphere structure.
func NewScalarImage(structure Structure, name string, values []float64) *Image {
	return &Image{
		Version: "1.0",
		Meta:    map[string]string{metaStructure: string(structure)},
		Arrays: []*DataArray{{
			Intent:   IntentNone,
			DataType: Float32,
			Dims:     []int{len(values)},
			Meta: map[string]string{
				metaName:      name,
				metaStructure: string(structure),
			},
			Data: values,
		}},
	}
}

// Structure returns the AnatomicalStructurePrimary of the image, looking at
// the file metadata first and then at the first data array.
func (img *Image) Structure() Structure {
	if s, ok := img.Meta[metaStructure]; ok {
		return Structure(s)
	}
	if len(img.Arrays) > 0 {
		return Structure(img.Arrays[0].Meta[metaStructure])
	}
	return ""
}

// ReadFile reads and decodes a GIfTI file.
func ReadFile(path string) (*Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.NewIOError("open", path, err)
	}
	defer f.Close()

	img, err := decode(f, path)
	if err != nil {
		return nil, err
	}
	return img, nil
}

// Read decodes a GIfTI document from r.
func Read(r io.Reader) (*Image, error) {
	return decode(r, "")
}

// 読み込み用の XML 構造。CDATA セクションも文字データとして受け取る。
type rawGifti struct {
	Version    string         `xml:"Version,attr"`
	NumArrays  int            `xml:"NumberOfDataArrays,attr"`
	MetaData   rawMetaData    `xml:"MetaData"`
	DataArrays []rawDataArray `xml:"DataArray"`
}

type rawMetaData struct {
	MD []struct {
		Name  string `xml:"Name"`
		Value string `xml:"Value"`
	} `xml:"MD"`
}

func (m rawMetaData) toMap() map[string]string {
	out := make(map[string]string, len(m.MD))
	for _, md := range m.MD {
		out[strings.TrimSpace(md.Name)] = strings.TrimSpace(md.Value)
	}
	return out
}

type rawDataArray struct {
	Intent         string      `xml:"Intent,attr"`
	DataType       string      `xml:"DataType,attr"`
	IndexingOrder  string      `xml:"ArrayIndexingOrder,attr"`
	Dimensionality int         `xml:"Dimensionality,attr"`
	Dim0           string      `xml:"Dim0,attr"`
	Dim1           string      `xml:"Dim1,attr"`
	Dim2           string      `xml:"Dim2,attr"`
	Encoding       string      `xml:"Encoding,attr"`
	Endian         string      `xml:"Endian,attr"`
	ExternalFile   string      `xml:"ExternalFileName,attr"`
	MetaData       rawMetaData `xml:"MetaData"`
	Data           string      `xml:"Data"`
}

func decode(r io.Reader, path string) (*Image, error) {
	var raw rawGifti
	dec := xml.NewDecoder(r)
	if err := dec.Decode(&raw); err != nil {
		var syntaxErr *xml.SyntaxError
		if errors.As(err, &syntaxErr) {
			return nil, errors.NewParseError(path, syntaxErr.Line, 0, syntaxErr.Msg)
		}
		if errors.Is(err, io.EOF) {
			return nil, errors.NewParseError(path, 0, 0, "empty document")
		}
		return nil, errors.NewIOError("read", path, err)
	}

	img := &Image{Version: raw.Version, Meta: raw.MetaData.toMap()}
	for i, ra := range raw.DataArrays {
		arr, err := ra.decode()
		if err != nil {
			return nil, errors.NewParseError(path, 0, 0, "DataArray "+strconv.Itoa(i)+": "+err.Error())
		}
		img.Arrays = append(img.Arrays, arr)
	}
	if raw.NumArrays != 0 && raw.NumArrays != len(img.Arrays) {
		return nil, errors.NewParseError(path, 0, 0,
			"NumberOfDataArrays="+strconv.Itoa(raw.NumArrays)+" but found "+strconv.Itoa(len(img.Arrays)))
	}
	return img, nil
}

func (ra rawDataArray) decode() (*DataArray, error) {
	if ra.ExternalFile != "" {
		return nil, errors.Newf("external data file %q is not supported", ra.ExternalFile)
	}

	dt := DataType(ra.DataType)
	if dt.size() == 0 {
		return nil, errors.Newf("unsupported data type %q", ra.DataType)
	}

	dims, err := ra.dims()
	if err != nil {
		return nil, err
	}
	count := 1
	for _, d := range dims {
		count *= d
	}

	var values []float64
	switch Encoding(ra.Encoding) {
	case ASCII:
		values, err = parseASCII(ra.Data)
	case Base64Binary, GZipBase64Binary:
		values, err = decodeBinary(ra.Data, Encoding(ra.Encoding), dt, ra.Endian)
	default:
		return nil, errors.Newf("unsupported encoding %q", ra.Encoding)
	}
	if err != nil {
		return nil, err
	}
	if len(values) != count {
		return nil, errors.Newf("expected %d values for dims %v, decoded %d", count, dims, len(values))
	}

	if ra.IndexingOrder == "ColumnMajorOrder" && len(dims) == 2 {
		values = transpose(values, dims[0], dims[1])
	}

	return &DataArray{
		Intent:   ra.Intent,
		DataType: dt,
		Dims:     dims,
		Meta:     ra.MetaData.toMap(),
		Data:     values,
	}, nil
}

func (ra rawDataArray) dims() ([]int, error) {
	n := ra.Dimensionality
	if n < 1 || n > 3 {
		return nil, errors.Newf("unsupported dimensionality %d", n)
	}
	attrs := []string{ra.Dim0, ra.Dim1, ra.Dim2}[:n]
	dims := make([]int, n)
	for i, s := range attrs {
		d, err := strconv.Atoi(strings.TrimSpace(s))
		if err != nil || d < 0 {
			return nil, errors.Newf("invalid Dim%d %q", i, s)
		}
		dims[i] = d
	}
	return dims, nil
}

func parseASCII(text string) ([]float64, error) {
	fields := strings.Fields(text)
	values := make([]float64, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, errors.Newf("invalid ASCII value %q", f)
		}
		values[i] = v
	}
	return values, nil
}

func decodeBinary(text string, enc Encoding, dt DataType, endian string) ([]float64, error) {
	raw, err := base64.StdEncoding.DecodeString(strings.Join(strings.Fields(text), ""))
	if err != nil {
		return nil, errors.Wrap(err, "invalid base64 data")
	}

	if enc == GZipBase64Binary {
		raw, err = inflate(raw)
		if err != nil {
			return nil, err
		}
	}

	var order binary.ByteOrder = binary.LittleEndian
	if endian == "BigEndian" {
		order = binary.BigEndian
	}

	size := dt.size()
	if len(raw)%size != 0 {
		return nil, errors.Newf("%d bytes is not a multiple of the %s element size", len(raw), dt)
	}

	values := make([]float64, len(raw)/size)
	for i := range values {
		b := raw[i*size : (i+1)*size]
		switch dt {
		case Float32:
			values[i] = float64(math.Float32frombits(order.Uint32(b)))
		case Float64:
			values[i] = math.Float64frombits(order.Uint64(b))
		case Int32:
			values[i] = float64(int32(order.Uint32(b)))
		case Uint8:
			values[i] = float64(b[0])
		}
	}
	return values, nil
}

// inflate は zlib ストリームを展開する。名前に反して GZipBase64Binary の
// 中身は通常 zlib だが、gzip ヘッダを持つファイルにも対応する。
func inflate(raw []byte) ([]byte, error) {
	var (
		rc  io.ReadCloser
		err error
	)
	if len(raw) >= 2 && raw[0] == 0x1f && raw[1] == 0x8b {
		rc, err = gzip.NewReader(bytes.NewReader(raw))
	} else {
		rc, err = zlib.NewReader(bytes.NewReader(raw))
	}
	if err != nil {
		return nil, errors.Wrap(err, "invalid compressed data")
	}
	defer rc.Close()

	out, err := io.ReadAll(rc)
	if err != nil {
		return nil, errors.Wrap(err, "invalid compressed data")
	}
	return out, nil
}

func transpose(values []float64, rows, cols int) []float64 {
	out := make([]float64, len(values))
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			out[i*cols+j] = values[j*rows+i]
		}
	}
	return out
}
