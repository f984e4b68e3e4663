package verify

import (
	"bufio"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/YuminosukeSato/connectome/npy"
	"github.com/YuminosukeSato/connectome/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// LoadArray reads a numeric array for comparison. ".npy" files are read
// as NumPy arrays. Anything else is read as whitespace separated text,
// one row per line, skipping skipRows leading lines and '#' comments;
// if that fails the file is read as an R data frame (a header row and a
// row-name column around the numbers).
func LoadArray(path string, skipRows int) (*mat.Dense, error) {
	if strings.EqualFold(filepath.Ext(path), ".npy") {
		return npy.ReadFile(path)
	}

	lines, err := readLines(path)
	if err != nil {
		return nil, err
	}
	if skipRows > len(lines) {
		skipRows = len(lines)
	}
	lines = lines[skipRows:]

	m, textErr := parseText(path, lines, skipRows)
	if textErr == nil {
		return m, nil
	}
	m, err = parseRDataFrame(path, lines, skipRows)
	if err != nil {
		// 数値テキストとしてのエラーの方が原因を示していることが多い
		return nil, textErr
	}
	return m, nil
}

func readLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.NewIOError("open", path, err)
	}
	defer f.Close()

	var lines []string
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 1024*1024), 64*1024*1024)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	if err := sc.Err(); err != nil {
		return nil, errors.NewIOError("read", path, err)
	}
	return lines, nil
}

type numberedRow struct {
	line   int
	fields []string
}

// dataRows はコメントと空行を除いた行を返す
func dataRows(lines []string, offset int) []numberedRow {
	var rows []numberedRow
	for i, l := range lines {
		if j := strings.IndexByte(l, '#'); j >= 0 {
			l = l[:j]
		}
		fields := strings.Fields(l)
		if len(fields) == 0 {
			continue
		}
		rows = append(rows, numberedRow{line: offset + i + 1, fields: fields})
	}
	return rows
}

func parseText(path string, lines []string, offset int) (*mat.Dense, error) {
	rows := dataRows(lines, offset)
	if len(rows) == 0 {
		return nil, errors.NewParseError(path, 0, 0, "no data")
	}
	return toDense(path, rows, 0)
}

// parseRDataFrame は write.table 形式（ヘッダ行は行名列の分だけ短いことがある）を読む
func parseRDataFrame(path string, lines []string, offset int) (*mat.Dense, error) {
	rows := dataRows(lines, offset)
	if len(rows) < 2 {
		return nil, errors.NewParseError(path, 0, 0, "no data frame rows")
	}
	header, body := rows[0], rows[1:]
	width := len(body[0].fields) - 1
	if width < 1 || (len(header.fields) != width && len(header.fields) != width+1) {
		return nil, errors.NewParseError(path, header.line, 0, "header does not match data frame columns")
	}
	return toDense(path, body, 1)
}

func toDense(path string, rows []numberedRow, skipCols int) (*mat.Dense, error) {
	cols := len(rows[0].fields) - skipCols
	data := make([]float64, 0, len(rows)*cols)
	for _, r := range rows {
		if len(r.fields)-skipCols != cols {
			return nil, errors.NewParseError(path, r.line, 0,
				"expected "+strconv.Itoa(cols)+" columns, got "+strconv.Itoa(len(r.fields)-skipCols))
		}
		for j, f := range r.fields[skipCols:] {
			v, err := strconv.ParseFloat(strings.Trim(f, `"`), 64)
			if err != nil {
				return nil, errors.NewParseError(path, r.line, skipCols+j+1, "not a number: "+strconv.Quote(f))
			}
			data = append(data, v)
		}
	}
	return mat.NewDense(len(rows), cols, data), nil
}
