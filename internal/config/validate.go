package config

import (
	"fmt"
	"strings"
)

type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Issue is one finding from ValidateJob. Path is a dotted config path.
type Issue struct {
	Severity Severity
	Path     string
	Message  string
}

// HasErrors reports whether any issue has SeverityError.
func HasErrors(issues []Issue) bool {
	for _, iss := range issues {
		if iss.Severity == SeverityError {
			return true
		}
	}
	return false
}

// ValidateJob checks a decoded job for structural problems. It does not touch
// the filesystem or network; format checks on data (URLs, field ids) happen
// when the job runs.
func ValidateJob(j Job) []Issue {
	var out []Issue
	errf := func(path, format string, args ...any) {
		out = append(out, Issue{Severity: SeverityError, Path: path, Message: fmt.Sprintf(format, args...)})
	}
	warnf := func(path, format string, args ...any) {
		out = append(out, Issue{Severity: SeverityWarning, Path: path, Message: fmt.Sprintf(format, args...)})
	}

	if j.Source.Kind != "file" || j.Source.File == nil || strings.TrimSpace(j.Source.File.Path) == "" {
		errf("source", "source.kind=file and source.file.path are required")
	}
	if j.Parser.Kind != "csv" {
		errf("parser.kind", "unsupported parser %q (want csv)", j.Parser.Kind)
	}
	if j.Delimiter == "" {
		errf("delimiter", "delimiter must not be empty")
	}

	switch j.Mode {
	case ModeLink:
		if strings.TrimSpace(j.Link.BaseURL) == "" {
			errf("link.base_url", "base_url is required in link mode")
		}
		if len(j.Fields) > 0 {
			warnf("fields", "fields are ignored in link mode; field ids come from the %q column", j.Link.IDColumn)
		}
	case ModeLetter:
		if err := j.Fields.Validate(); err != nil {
			errf("fields", "%v", err)
		}
		if strings.TrimSpace(j.Letter.TemplateID) == "" {
			errf("letter.template_id", "template_id is required in letter mode")
		}
		switch j.Letter.Notification.Method {
		case "":
		case "sms", "email":
			if strings.TrimSpace(j.Letter.Notification.RecipientColumn) == "" {
				warnf("letter.notification.recipient_column", "recipient_column not set; the column is detected by keyword")
			}
		default:
			errf("letter.notification.method", "unknown method %q (want sms or email)", j.Letter.Notification.Method)
		}
		for name := range j.Mapping {
			if _, ok := j.Fields.Lookup(name); !ok {
				warnf("mapping."+name, "mapping for unknown field %q is ignored", name)
			}
		}
		if lf := j.Export.LabelField; lf != "" {
			if _, ok := j.Fields.Lookup(lf); !ok {
				warnf("export.label_field", "label field %q is not a target field", lf)
			}
		}
		if j.Export.IncludeURL {
			warnf("export.include_url", "include_url has no effect in letter mode")
		}
		for i, af := range j.Export.AdditionalFields {
			if _, ok := j.Fields.Lookup(af); !ok {
				warnf(fmt.Sprintf("export.additional_fields[%d]", i), "field %q is not a target field", af)
			}
		}
	default:
		errf("mode", "unknown mode %q (want link or letter)", j.Mode)
	}

	if o := j.Output; o.ResultsCSV != "" && o.ResultsCSV == o.TemplateCSV {
		errf("output.template_csv", "template_csv must differ from results_csv")
	}

	switch j.Storage.Kind {
	case "":
	case "postgres", "mssql", "sqlite":
		if strings.TrimSpace(j.Storage.DSN) == "" {
			errf("storage.dsn", "dsn is required for storage.kind=%s", j.Storage.Kind)
		}
	default:
		errf("storage.kind", "unsupported storage kind %q", j.Storage.Kind)
	}

	switch j.Metrics.Backend {
	case "", "none", "datadog":
	default:
		errf("metrics.backend", "unknown metrics backend %q (want none or datadog)", j.Metrics.Backend)
	}

	return out
}
