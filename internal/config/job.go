package config

import (
	"prefill/internal/output"
	"prefill/internal/schema"
)

// Generation modes.
const (
	ModeLink   = "link"
	ModeLetter = "letter"
)

// Job is one generation job: where the spreadsheet comes from, which fields it
// must supply, and where the generated artifacts go.
type Job struct {
	Job    string `json:"job" yaml:"job"`
	Mode   string `json:"mode" yaml:"mode"`
	Source Source `json:"source" yaml:"source"`
	Parser Parser `json:"parser" yaml:"parser"`

	// Fields are the target fields. In link mode they may be omitted; the
	// field-per-row layout (field id, values, description) is used instead.
	Fields schema.FieldSet `json:"fields,omitempty" yaml:"fields,omitempty"`

	// Mapping holds manual field -> header choices. They always win over
	// auto-suggestions.
	Mapping map[string]string `json:"mapping,omitempty" yaml:"mapping,omitempty"`

	// Delimiter splits one cell into a value list. Empty means ",".
	Delimiter string `json:"delimiter,omitempty" yaml:"delimiter,omitempty"`

	// StrictLengths rejects multi-value fields of different lengths instead of
	// padding the shorter one with its last value.
	StrictLengths bool `json:"strict_lengths,omitempty" yaml:"strict_lengths,omitempty"`

	Link    LinkConfig          `json:"link" yaml:"link"`
	Letter  LetterConfig        `json:"letter" yaml:"letter"`
	Export  output.ExportConfig `json:"export" yaml:"export"`
	Output  OutputConfig        `json:"output" yaml:"output"`
	Storage StorageConfig       `json:"storage" yaml:"storage"`
	Metrics MetricsConfig       `json:"metrics" yaml:"metrics"`
}

type Source struct {
	Kind string      `json:"kind" yaml:"kind"`
	File *FileSource `json:"file,omitempty" yaml:"file,omitempty"`
}

type FileSource struct {
	Path string `json:"path" yaml:"path"`
}

type Parser struct {
	Kind    string  `json:"kind" yaml:"kind"`
	Options Options `json:"options" yaml:"options"`
}

// LinkConfig configures pre-filled form links.
type LinkConfig struct {
	BaseURL string `json:"base_url" yaml:"base_url"`

	// Header names of the field-per-row layout. Defaults: FieldID, values,
	// description.
	IDColumn          string `json:"id_column,omitempty" yaml:"id_column,omitempty"`
	ValuesColumn      string `json:"values_column,omitempty" yaml:"values_column,omitempty"`
	DescriptionColumn string `json:"description_column,omitempty" yaml:"description_column,omitempty"`
}

// LetterConfig configures bulk letter requests.
type LetterConfig struct {
	TemplateID   string             `json:"template_id" yaml:"template_id"`
	APIBaseURL   string             `json:"api_base_url,omitempty" yaml:"api_base_url,omitempty"`
	APIKeyEnv    string             `json:"api_key_env,omitempty" yaml:"api_key_env,omitempty"`
	APIKeyFile   string             `json:"api_key_file,omitempty" yaml:"api_key_file,omitempty"`
	Timeout      string             `json:"timeout,omitempty" yaml:"timeout,omitempty"`
	Notification NotificationConfig `json:"notification" yaml:"notification"`

	// APIKey comes from the command line only and is never read from a job file.
	APIKey string `json:"-" yaml:"-"`
}

// NotificationConfig is optional. When Method is empty no recipients are
// attached.
type NotificationConfig struct {
	Method          string `json:"method,omitempty" yaml:"method,omitempty"` // "sms" | "email"
	RecipientColumn string `json:"recipient_column,omitempty" yaml:"recipient_column,omitempty"`
}

type OutputConfig struct {
	ResultsCSV  string `json:"results_csv,omitempty" yaml:"results_csv,omitempty"`
	TemplateCSV string `json:"template_csv,omitempty" yaml:"template_csv,omitempty"`
}

// StorageConfig selects the optional run history backend: "postgres" |
// "mssql" | "sqlite". Empty disables storage.
type StorageConfig struct {
	Kind string `json:"kind,omitempty" yaml:"kind,omitempty"`
	DSN  string `json:"dsn,omitempty" yaml:"dsn,omitempty"`
}

type MetricsConfig struct {
	Backend    string   `json:"backend,omitempty" yaml:"backend,omitempty"` // "datadog" | "none"
	Tags       []string `json:"tags,omitempty" yaml:"tags,omitempty"`
	FlushEvery string   `json:"flush_every,omitempty" yaml:"flush_every,omitempty"`
}
