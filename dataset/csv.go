package dataset

import (
	"encoding/csv"
	"io"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/teranos/samarth/errors"
	"github.com/teranos/samarth/logger"
)

// nullTokens are cell values read as null
var nullTokens = map[string]struct{}{
	"":     {},
	"NA":   {},
	"N/A":  {},
	"NaN":  {},
	"nan":  {},
	"null": {},
	"NULL": {},
	"None": {},
}

// NameFromFile derives a dataset name from a CSV file name:
// "Agmark Mandis and locations.csv" -> "agmark_mandis_and_locations".
func NameFromFile(filename string) string {
	base := filepath.Base(filename)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	stem = strings.ReplaceAll(stem, " ", "_")
	stem = strings.NewReplacer("(", "", ")", "").Replace(stem)
	return strings.ToLower(stem)
}

// LoadCSV reads a CSV with a header row into a typed dataset.
// A leading UTF-8 byte order mark is dropped.
func LoadCSV(name string, r io.Reader) (*Dataset, error) {
	decoded := transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder()))

	reader := csv.NewReader(decoded)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, errors.Newf("dataset %s: empty file", name)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "dataset %s: read header", name)
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	var raw [][]string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrapf(err, "dataset %s: read row %d", name, len(raw)+1)
		}
		// Pad short rows, truncate long ones
		row := make([]string, len(header))
		copy(row, record)
		raw = append(raw, row)
	}

	columns := make([]Column, len(header))
	for j, h := range header {
		columns[j] = Column{Name: h, Type: inferType(raw, j)}
	}

	rows := make([][]any, len(raw))
	for i, rec := range raw {
		row := make([]any, len(columns))
		for j, c := range columns {
			row[j] = parseCell(rec[j], c.Type)
		}
		rows[i] = row
	}

	return New(name, columns, rows)
}

// LoadFile opens a single CSV file, naming it with NameFromFile
func LoadFile(path string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	defer f.Close()

	return LoadCSV(NameFromFile(path), f)
}

// LoadDir loads every *.csv file in dir into a registry. Files are read in
// name order; a file that fails to parse is logged and skipped.
func LoadDir(dir string, log *zap.SugaredLogger) (*Registry, error) {
	log = logger.OrNop(log)

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.WithHint(
			errors.Wrapf(err, "read data directory %s", dir),
			"set data.dir in am.toml or SAMARTH_DATA_DIR",
		)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".csv") {
			continue
		}
		files = append(files, e.Name())
	}
	sort.Strings(files)

	var datasets []*Dataset
	for _, file := range files {
		d, err := LoadFile(filepath.Join(dir, file))
		if err != nil {
			log.Warnw("Skipping dataset",
				logger.FieldFile, file,
				logger.FieldError, err.Error())
			continue
		}
		log.Infow("Loaded dataset",
			logger.FieldDataset, d.Name(),
			logger.FieldRows, d.RowCount(),
			logger.FieldColumns, len(d.columns))
		datasets = append(datasets, d)
	}

	return NewRegistry(datasets...)
}

func isNull(s string) bool {
	_, ok := nullTokens[strings.TrimSpace(s)]
	return ok
}

// inferType picks the narrowest type every non-null value in column j parses as
func inferType(rows [][]string, j int) Type {
	isInt, isFloat, isBool := true, true, true
	seen := false

	for _, row := range rows {
		s := strings.TrimSpace(row[j])
		if isNull(s) {
			continue
		}
		seen = true
		if isInt {
			if _, err := strconv.ParseInt(s, 10, 64); err != nil {
				isInt = false
			}
		}
		if isFloat {
			if _, ok := parseDecimal(s); !ok {
				isFloat = false
			}
		}
		if isBool {
			if _, ok := parseBool(s); !ok {
				isBool = false
			}
		}
		if !isInt && !isFloat && !isBool {
			return TypeString
		}
	}

	switch {
	case !seen:
		return TypeString
	case isInt:
		return TypeInt
	case isFloat:
		return TypeFloat
	case isBool:
		return TypeBool
	default:
		return TypeString
	}
}

func parseCell(s string, t Type) any {
	if isNull(s) {
		return nil
	}
	s = strings.TrimSpace(s)
	switch t {
	case TypeInt:
		v, _ := strconv.ParseInt(s, 10, 64)
		return v
	case TypeFloat:
		v, ok := parseDecimal(s)
		if !ok {
			return nil
		}
		return v
	case TypeBool:
		v, _ := parseBool(s)
		return v
	default:
		return s
	}
}

// decimalPattern is plain decimal notation. Hex, exponent and inf spellings
// are left as text so codes like 0x1A or 1e5 survive unchanged.
var decimalPattern = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)$`)

// parseDecimal parses s as a finite decimal
func parseDecimal(s string) (float64, bool) {
	if !decimalPattern.MatchString(s) {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

func parseBool(s string) (bool, bool) {
	switch {
	case strings.EqualFold(s, "true"):
		return true, true
	case strings.EqualFold(s, "false"):
		return false, true
	}
	return false, false
}
