package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Load reads a job file. Files ending in .yaml or .yml are decoded as YAML,
// everything else as JSON. Unknown JSON keys are rejected so typos surface
// early.
func Load(path string) (Job, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Job{}, fmt.Errorf("read config: %w", err)
	}
	return Decode(raw, filepath.Ext(path))
}

// Decode parses raw job bytes. ext selects the format (".json", ".yaml", ".yml").
func Decode(raw []byte, ext string) (Job, error) {
	var j Job
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(raw, &j); err != nil {
			return Job{}, fmt.Errorf("decode yaml config: %w", err)
		}
	default:
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&j); err != nil {
			return Job{}, fmt.Errorf("decode json config: %w", err)
		}
	}
	j.applyDefaults()
	return j, nil
}

func (j *Job) applyDefaults() {
	if j.Mode == "" {
		j.Mode = ModeLink
	}
	if j.Source.Kind == "" && j.Source.File != nil {
		j.Source.Kind = "file"
	}
	if j.Parser.Kind == "" {
		j.Parser.Kind = "csv"
	}
	if j.Delimiter == "" {
		j.Delimiter = ","
	}
	if j.Link.IDColumn == "" {
		j.Link.IDColumn = "FieldID"
	}
	if j.Link.ValuesColumn == "" {
		j.Link.ValuesColumn = "values"
	}
	if j.Link.DescriptionColumn == "" {
		j.Link.DescriptionColumn = "description"
	}
	j.Letter.Notification.Method = strings.ToLower(strings.TrimSpace(j.Letter.Notification.Method))
	j.Storage.DSN = os.ExpandEnv(j.Storage.DSN)
}
