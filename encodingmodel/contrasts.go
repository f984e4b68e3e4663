package encodingmodel

import (
	"bufio"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/YuminosukeSato/connectome/pkg/errors"
)

// CodeStatus は条件コードのセルがどのように得られたかを表す
type CodeStatus int

const (
	// CodePresent はセルが整数として解析できたことを表す
	CodePresent CodeStatus = iota
	// CodeDefaulted はセルが空または解析できず 0 を補ったことを表す
	CodeDefaulted
)

func (s CodeStatus) String() string {
	switch s {
	case CodePresent:
		return "present"
	case CodeDefaulted:
		return "defaulted"
	default:
		return "unknown"
	}
}

// ContrastKey identifies one contrast of one task.
type ContrastKey struct {
	Task     int
	Contrast int
}

// ContrastEntry は1行分の条件コード
type ContrastEntry struct {
	TaskName string
	Codes    []float64
	Status   []CodeStatus
}

// Defaulted returns the number of codes that were filled in with 0.
func (e *ContrastEntry) Defaulted() int {
	n := 0
	for _, s := range e.Status {
		if s == CodeDefaulted {
			n++
		}
	}
	return n
}

// ContrastTable maps (task, contrast) keys to condition-code vectors.
// Every entry has exactly len(Variables) codes.
type ContrastTable struct {
	// Variables はヘッダ4列目以降の条件変数名
	Variables []string

	entries map[ContrastKey]*ContrastEntry
}

// NewContrastTable builds a table from already parsed entries. Every entry
// must carry one code per variable.
func NewContrastTable(variables []string, entries map[ContrastKey]*ContrastEntry) (*ContrastTable, error) {
	for key, e := range entries {
		if len(e.Codes) != len(variables) {
			return nil, errors.NewShapeError("NewContrastTable", []int{len(variables)}, []int{len(e.Codes)},
				"codes for task "+strconv.Itoa(key.Task)+" contrast "+strconv.Itoa(key.Contrast))
		}
		if e.Status == nil {
			e.Status = make([]CodeStatus, len(e.Codes))
		}
	}
	return &ContrastTable{Variables: variables, entries: entries}, nil
}

// Len returns the number of (task, contrast) entries.
func (t *ContrastTable) Len() int {
	return len(t.entries)
}

// Entry looks up the codes of one contrast.
func (t *ContrastTable) Entry(key ContrastKey) (*ContrastEntry, bool) {
	e, ok := t.entries[key]
	return e, ok
}

// Keys returns all keys sorted by task, then contrast.
func (t *ContrastTable) Keys() []ContrastKey {
	keys := make([]ContrastKey, 0, len(t.entries))
	for k := range t.entries {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Task != keys[j].Task {
			return keys[i].Task < keys[j].Task
		}
		return keys[i].Contrast < keys[j].Contrast
	})
	return keys
}

// Defaulted returns the total number of defaulted code cells.
func (t *ContrastTable) Defaulted() int {
	n := 0
	for _, e := range t.entries {
		n += e.Defaulted()
	}
	return n
}

// TableOption configures contrast table parsing.
type TableOption func(*tableOptions)

type tableOptions struct {
	strict bool
	path   string
}

// WithStrictCodes makes unparsable or missing code cells a ParseError
// instead of defaulting them to 0.
func WithStrictCodes(strict bool) TableOption {
	return func(o *tableOptions) {
		o.strict = strict
	}
}

// LoadContrastTable reads a contrast table file.
func LoadContrastTable(path string, opts ...TableOption) (*ContrastTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.NewIOError("open", path, err)
	}
	defer f.Close()

	opts = append(opts, func(o *tableOptions) { o.path = path })
	return ParseContrastTable(f, opts...)
}

var leadingColumns = [...]string{"task", "contrast", "name"}

// ParseContrastTable parses a tab-delimited contrast table:
//
//	task<TAB>contrast<TAB>name<TAB>var1<TAB>var2...
//	1<TAB>1<TAB>nback<TAB>1<TAB>0...
//
// Task and contrast must be integers and unique as a pair. Code cells that
// are missing or not integers become 0 with status CodeDefaulted, unless
// WithStrictCodes is set. Blank lines are skipped.
func ParseContrastTable(r io.Reader, opts ...TableOption) (*ContrastTable, error) {
	o := &tableOptions{}
	for _, opt := range opts {
		opt(o)
	}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)

	if !sc.Scan() {
		if err := sc.Err(); err != nil {
			return nil, errors.NewIOError("read", o.path, err)
		}
		return nil, errors.NewParseError(o.path, 1, 0, "missing header")
	}
	header := strings.Split(strings.TrimSpace(sc.Text()), "\t")
	if len(header) < len(leadingColumns)+1 {
		return nil, errors.NewParseError(o.path, 1, 0, "header needs task, contrast, name and at least one variable column")
	}
	for i, want := range leadingColumns {
		if !strings.EqualFold(strings.TrimSpace(header[i]), want) {
			return nil, errors.NewParseError(o.path, 1, i+1, "expected column "+strconv.Quote(want)+", got "+strconv.Quote(header[i]))
		}
	}
	variables := make([]string, 0, len(header)-len(leadingColumns))
	// 出力ファイル名はラベルから作るので、サニタイズ後も一意でなければならない
	seen := make(map[string]string, cap(variables))
	for i, name := range header[len(leadingColumns):] {
		name = strings.TrimSpace(name)
		col := len(leadingColumns) + i + 1
		if name == "" {
			return nil, errors.NewParseError(o.path, 1, col, "empty variable name")
		}
		if prev, ok := seen[SanitizeLabel(name)]; ok {
			if prev == name {
				return nil, errors.NewParseError(o.path, 1, col, "duplicate variable name "+strconv.Quote(name))
			}
			return nil, errors.NewParseError(o.path, 1, col,
				"variable names "+strconv.Quote(prev)+" and "+strconv.Quote(name)+" map to the same output file name")
		}
		seen[SanitizeLabel(name)] = name
		variables = append(variables, name)
	}

	entries := make(map[ContrastKey]*ContrastEntry)
	line := 1
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		fields := strings.Split(text, "\t")
		if len(fields) < len(leadingColumns) {
			return nil, errors.NewParseError(o.path, line, 0, "row needs task, contrast and name columns")
		}

		task, err := strconv.Atoi(strings.TrimSpace(fields[0]))
		if err != nil {
			return nil, errors.NewParseError(o.path, line, 1, "task is not an integer: "+strconv.Quote(fields[0]))
		}
		contrast, err := strconv.Atoi(strings.TrimSpace(fields[1]))
		if err != nil {
			return nil, errors.NewParseError(o.path, line, 2, "contrast is not an integer: "+strconv.Quote(fields[1]))
		}
		key := ContrastKey{Task: task, Contrast: contrast}
		if _, dup := entries[key]; dup {
			return nil, errors.NewParseError(o.path, line, 1,
				"duplicate task "+strconv.Itoa(task)+" contrast "+strconv.Itoa(contrast))
		}

		entry := &ContrastEntry{
			TaskName: fields[2],
			Codes:    make([]float64, len(variables)),
			Status:   make([]CodeStatus, len(variables)),
		}
		for i := range variables {
			col := len(leadingColumns) + i
			// 列が足りない行も 0 として扱う
			if col < len(fields) {
				if v, err := strconv.Atoi(strings.TrimSpace(fields[col])); err == nil {
					entry.Codes[i] = float64(v)
					continue
				}
			}
			if o.strict {
				cell := ""
				if col < len(fields) {
					cell = fields[col]
				}
				return nil, errors.NewParseError(o.path, line, col+1,
					"code for "+variables[i]+" is not an integer: "+strconv.Quote(cell))
			}
			entry.Status[i] = CodeDefaulted
		}
		entries[key] = entry
	}
	if err := sc.Err(); err != nil {
		return nil, errors.NewIOError("read", o.path, err)
	}

	return &ContrastTable{Variables: variables, entries: entries}, nil
}
