package preprocessor

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"rgehrsitz/expert/internal/actions"
	"rgehrsitz/expert/internal/rules"
)

// Format is an on-disk encoding of rules, schemas or data.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatCSV  Format = "csv"
)

// FormatFromPath picks the format from a file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".csv":
		return FormatCSV, nil
	default:
		return "", fmt.Errorf("unsupported file format: %s", filepath.Ext(path))
	}
}

// Document is the JSON/YAML layout of a rule file.
type Document struct {
	Metadata map[string]interface{} `json:"metadata,omitempty" yaml:"metadata,omitempty"`
	Rules    []*rules.Rule          `json:"rules" yaml:"rules"`
}

// LoadRules reads and parses a rule file, choosing the format by extension.
func LoadRules(path string) ([]*rules.Rule, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules file: %w", err)
	}
	return ParseRules(data, format)
}

// ParseRules decodes rules. JSON and YAML accept either a document with a "rules" key
// or a bare list of rules.
func ParseRules(data []byte, format Format) ([]*rules.Rule, error) {
	log.Info().Str("format", string(format)).Msg("Started parsing rules...")
	var parsed []*rules.Rule
	var err error
	switch format {
	case FormatJSON:
		parsed, err = parseJSON(data)
	case FormatYAML:
		parsed, err = parseYAML(data)
	case FormatCSV:
		parsed, err = parseCSV(bytes.NewReader(data))
	default:
		err = fmt.Errorf("unsupported rule format: %s", format)
	}
	if err != nil {
		return nil, err
	}
	for i, r := range parsed {
		if r == nil {
			return nil, fmt.Errorf("rule %d is empty", i)
		}
	}
	return parsed, nil
}

func parseJSON(data []byte) ([]*rules.Rule, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var list []*rules.Rule
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return nil, fmt.Errorf("failed to unmarshal rules JSON: %w", err)
		}
		return list, nil
	}
	var doc Document
	if err := json.Unmarshal(trimmed, &doc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal rules JSON: %w", err)
	}
	return doc.Rules, nil
}

func parseYAML(data []byte) ([]*rules.Rule, error) {
	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, fmt.Errorf("failed to unmarshal rules YAML: %w", err)
	}
	if len(node.Content) == 0 {
		return nil, nil
	}
	root := node.Content[0]
	if root.Kind == yaml.SequenceNode {
		var list []*rules.Rule
		if err := root.Decode(&list); err != nil {
			return nil, fmt.Errorf("failed to decode rules YAML: %w", err)
		}
		return list, nil
	}
	var doc Document
	if err := root.Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode rules YAML: %w", err)
	}
	return doc.Rules, nil
}

var csvColumns = []string{"name", "fact", "operator", "value", "action_type"}

// parseCSV reads one condition per row. Rows sharing a name are merged into one rule;
// the action and priority come from the first row of each rule.
func parseCSV(r io.Reader) ([]*rules.Rule, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read rules CSV header: %w", err)
	}
	index := make(map[string]int, len(header))
	for i, col := range header {
		index[strings.TrimSpace(col)] = i
	}
	for _, col := range csvColumns {
		if _, ok := index[col]; !ok {
			return nil, fmt.Errorf("rules CSV is missing column '%s'", col)
		}
	}
	field := func(row []string, col string) string {
		if i, ok := index[col]; ok && i < len(row) {
			return strings.TrimSpace(row[i])
		}
		return ""
	}

	var parsed []*rules.Rule
	byName := make(map[string]*rules.Rule)
	for line := 2; ; line++ {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read rules CSV line %d: %w", line, err)
		}

		cond := rules.Condition{
			Fact:     field(row, "fact"),
			Operator: field(row, "operator"),
			Value:    ParseValue(field(row, "value")),
		}
		name := field(row, "name")
		if existing, ok := byName[name]; ok {
			existing.Conditions = append(existing.Conditions, cond)
			continue
		}

		priority, err := parseInt(field(row, "priority"))
		if err != nil {
			return nil, fmt.Errorf("invalid priority on rules CSV line %d: %w", line, err)
		}
		probability, err := parseInt(field(row, "probability"))
		if err != nil {
			return nil, fmt.Errorf("invalid probability on rules CSV line %d: %w", line, err)
		}
		rule := &rules.Rule{
			Name:        name,
			Description: field(row, "description"),
			Priority:    priority,
			Conditions:  []rules.Condition{cond},
			Actions: []rules.Action{{
				Type: field(row, "action_type"),
				Parameters: actions.Params{
					"probability":    probability,
					"status":         field(row, "status"),
					"recommendation": field(row, "recommendation"),
				},
			}},
		}
		byName[name] = rule
		parsed = append(parsed, rule)
	}
	return parsed, nil
}

func parseInt(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.Atoi(s)
}

// ParseValue converts a literal from a tabular source: integers, then floats (when the
// text has a '.'), then booleans, otherwise the trimmed string. Values separated by '|'
// become a list, which is how ranges and sets are written in CSV.
func ParseValue(s string) interface{} {
	if strings.Contains(s, "|") {
		parts := strings.Split(s, "|")
		list := make([]interface{}, len(parts))
		for i, part := range parts {
			list[i] = ParseValue(part)
		}
		return list
	}
	s = strings.TrimSpace(s)
	if strings.Contains(s, ".") {
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
	} else if i, err := strconv.Atoi(s); err == nil {
		return i
	}
	switch strings.ToLower(s) {
	case "true":
		return true
	case "false":
		return false
	}
	return s
}
