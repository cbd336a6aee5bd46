package schema

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"rgehrsitz/expert/internal/preprocessor"
)

// Invalid is a record that failed schema validation.
type Invalid struct {
	Data   map[string]interface{}
	Errors []error
}

// LoadData reads a single JSON or YAML record. With a schema, defaults are applied and
// the record must validate.
func LoadData(path string, s *Schema) (map[string]interface{}, error) {
	format, err := preprocessor.FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read data file: %w", err)
	}

	data := map[string]interface{}{}
	switch format {
	case preprocessor.FormatJSON:
		err = json.Unmarshal(raw, &data)
	case preprocessor.FormatYAML:
		err = yaml.Unmarshal(raw, &data)
	default:
		return nil, fmt.Errorf("unsupported format for data: %s", format)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decode data file: %w", err)
	}

	if s != nil {
		data = s.ApplyDefaults(data)
		if errs := s.Validate(data); len(errs) > 0 {
			return nil, fmt.Errorf("data validation failed: %w", errors.Join(errs...))
		}
	}
	return data, nil
}

// LoadBatch reads every record of a CSV file, or the single record of a JSON or YAML file.
func LoadBatch(path string, s *Schema) ([]map[string]interface{}, error) {
	format, err := preprocessor.FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	if format != preprocessor.FormatCSV {
		data, err := LoadData(path, s)
		if err != nil {
			return nil, err
		}
		return []map[string]interface{}{data}, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open data file: %w", err)
	}
	defer f.Close()
	return ReadCSV(f, s)
}

// ReadCSV converts each row to a record, typed by the schema where it defines the column
// and auto-detected otherwise. Empty cells are left out. Rows that fail validation are
// skipped with a warning.
func ReadCSV(r io.Reader, s *Schema) ([]map[string]interface{}, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read data CSV header: %w", err)
	}

	var records []map[string]interface{}
	for line := 2; ; line++ {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read data CSV line %d: %w", line, err)
		}

		data := make(map[string]interface{}, len(header))
		for i, col := range header {
			if i >= len(row) || strings.TrimSpace(row[i]) == "" {
				continue
			}
			col = strings.TrimSpace(col)
			var value interface{}
			if def := schemaDef(s, col); def != nil {
				value = convert(row[i], def.Type)
			} else {
				value = preprocessor.ParseValue(row[i])
			}
			if value != nil {
				data[col] = value
			}
		}

		if s != nil {
			data = s.ApplyDefaults(data)
			if errs := s.Validate(data); len(errs) > 0 {
				log.Warn().Int("line", line).Err(errors.Join(errs...)).Msg("Row validation failed")
				continue
			}
		}
		records = append(records, data)
	}
	return records, nil
}

// Partition splits records into those that validate against s and those that do not.
func Partition(records []map[string]interface{}, s *Schema) ([]map[string]interface{}, []Invalid) {
	var valid []map[string]interface{}
	var invalid []Invalid
	for _, data := range records {
		if errs := s.Validate(data); len(errs) > 0 {
			invalid = append(invalid, Invalid{Data: data, Errors: errs})
			continue
		}
		valid = append(valid, data)
	}
	return valid, invalid
}

func schemaDef(s *Schema, name string) *Definition {
	if s == nil {
		return nil
	}
	return s.Get(name)
}

// convert turns a cell into the schema type; a cell that cannot be converted becomes nil.
func convert(cell string, t Type) interface{} {
	cell = strings.TrimSpace(cell)
	switch t {
	case TypeNumber:
		if strings.Contains(cell, ".") {
			if f, err := strconv.ParseFloat(cell, 64); err == nil {
				return f
			}
			return nil
		}
		if i, err := strconv.Atoi(cell); err == nil {
			return i
		}
		return nil
	case TypeBoolean:
		switch strings.ToLower(cell) {
		case "true", "1", "yes", "y":
			return true
		}
		return false
	case TypeDate:
		if d, err := time.Parse(DateLayout, cell); err == nil {
			return d
		}
		return cell
	case TypeArray:
		parts := strings.Split(cell, "|")
		list := make([]interface{}, len(parts))
		for i, part := range parts {
			list[i] = preprocessor.ParseValue(part)
		}
		return list
	default:
		return cell
	}
}
