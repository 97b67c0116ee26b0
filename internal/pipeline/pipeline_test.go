package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"prefill/internal/config"
	"prefill/internal/letters"
	"prefill/internal/schema"
	"prefill/internal/storage"
)

const (
	baseURL = "https://form.gov.sg/abcdefabcdefabcdefabcdef"
	idNames = "67488bb37e8c75e33b9f9191"
	idEmail = "67488f8e088e833537af24aa"
)

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", p, err)
	}
	return p
}

func readFile(t *testing.T, p string) string {
	t.Helper()
	b, err := os.ReadFile(p)
	if err != nil {
		t.Fatalf("read %s: %v", p, err)
	}
	return string(b)
}

func testRunner() *Runner {
	r := NewDefaultRunner(zap.NewNop())
	r.NewID = func() string { return "run-1" }
	r.Now = func() time.Time { return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC) }
	return r
}

func linkJob(path string) config.Job {
	return config.Job{
		Job:       "links",
		Mode:      config.ModeLink,
		Source:    config.Source{Kind: "file", File: &config.FileSource{Path: path}},
		Parser:    config.Parser{Kind: "csv"},
		Delimiter: ",",
		Link: config.LinkConfig{
			BaseURL:           baseURL,
			IDColumn:          "FieldID",
			ValuesColumn:      "values",
			DescriptionColumn: "description",
		},
	}
}

const linkCSV = "FieldID,values,description\n" +
	idNames + ",\"John,Jane,Alex\",Names\n" +
	idEmail + ",a@x.com,Email\n"

func TestRun_LinkScenario(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	job := linkJob(writeFile(t, dir, "in.csv", linkCSV))
	job.Export.IncludeURL = true
	job.Export.AdditionalFields = []string{idNames}
	job.Output.ResultsCSV = filepath.Join(dir, "results.csv")
	job.Output.TemplateCSV = filepath.Join(dir, "template.csv")

	res, err := testRunner().Run(context.Background(), job)
	require.NoError(t, err)
	require.Equal(t, "run-1", res.RunID)
	require.Len(t, res.Combinations, 3)
	require.Len(t, res.Links, 3)

	require.Equal(t, baseURL+"?"+idNames+"=John&"+idEmail+"=a%40x.com", res.Links[0].URL)
	require.Equal(t, baseURL+"?"+idNames+"=Alex&"+idEmail+"=a%40x.com", res.Links[2].URL)
	for _, c := range res.Combinations {
		v, _ := c.Value(idEmail)
		require.Equal(t, "a@x.com", v)
	}

	wantResults := "Form URL,Names\n" +
		res.Links[0].URL + ",John\n" +
		res.Links[1].URL + ",Jane\n" +
		res.Links[2].URL + ",Alex\n"
	require.Equal(t, wantResults, readFile(t, job.Output.ResultsCSV))

	wantTemplate := "FieldID,values,description\n" +
		idNames + ",,Names\n" +
		idEmail + ",,Email\n"
	require.Equal(t, wantTemplate, readFile(t, job.Output.TemplateCSV))
}

func TestRun_LinkBadBaseURL(t *testing.T) {
	t.Parallel()

	job := linkJob(writeFile(t, t.TempDir(), "in.csv", linkCSV))
	job.Link.BaseURL = "http://form.gov.sg/123"

	res, err := testRunner().Run(context.Background(), job)
	require.Error(t, err)
	require.True(t, errors.Is(err, schema.ErrURLFormat), "err=%v", err)
	require.Empty(t, res.Combinations)
	require.Empty(t, res.Links)
}

func TestRun_LinkRowErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		csv  string
		want error
	}{
		{
			name: "bad_field_id",
			csv:  "FieldID,values\nnot-an-id,a\n",
			want: schema.ErrIdentifierFormat,
		},
		{
			name: "duplicate_field_id",
			csv:  "FieldID,values\n" + idNames + ",a\n" + idNames + ",b\n",
			want: schema.ErrStructuralCsv,
		},
		{
			name: "empty_values",
			csv:  "FieldID,values\n" + idNames + ",\" , \"\n",
			want: schema.ErrEmptyValues,
		},
		{
			name: "missing_values_column",
			csv:  "FieldID,notes\n" + idNames + ",a\n",
			want: schema.ErrStructuralCsv,
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			job := linkJob(writeFile(t, t.TempDir(), "in.csv", tc.csv))
			_, err := testRunner().Run(context.Background(), job)
			if !errors.Is(err, tc.want) {
				t.Fatalf("err=%v, want %v", err, tc.want)
			}
		})
	}
}

func TestRun_PaddingPolicy(t *testing.T) {
	t.Parallel()

	csv := "FieldID,values\n" + idNames + ",\"x,y,z\"\n" + idEmail + ",\"p,q\"\n"

	t.Run("repeat_last", func(t *testing.T) {
		t.Parallel()
		job := linkJob(writeFile(t, t.TempDir(), "in.csv", csv))
		res, err := testRunner().Run(context.Background(), job)
		require.NoError(t, err)
		require.Len(t, res.Combinations, 3)
		got := make([]string, 0, 3)
		for _, c := range res.Combinations {
			v, _ := c.Value(idEmail)
			got = append(got, v)
		}
		require.Equal(t, []string{"p", "q", "q"}, got)
	})

	t.Run("strict", func(t *testing.T) {
		t.Parallel()
		job := linkJob(writeFile(t, t.TempDir(), "in.csv", csv))
		job.StrictLengths = true
		_, err := testRunner().Run(context.Background(), job)
		require.True(t, errors.Is(err, schema.ErrCountMismatch), "err=%v", err)
	})
}

func TestRun_LinkMalformedQuoteEndsImport(t *testing.T) {
	t.Parallel()

	csv := "FieldID,values,description\n" +
		idNames + ",\"John,Jane,Alex\",Names\n" +
		idEmail + ",a@x.com,\"Em\"ail\n"
	dir := t.TempDir()
	job := linkJob(writeFile(t, dir, "in.csv", csv))
	job.Output.ResultsCSV = filepath.Join(dir, "results.csv")

	res, err := testRunner().Run(context.Background(), job)
	require.True(t, errors.Is(err, schema.ErrCsvParse), "err=%v", err)
	require.ErrorContains(t, err, "parse: ")
	require.Empty(t, res.Combinations)
	require.Empty(t, res.Links)
	_, statErr := os.Stat(job.Output.ResultsCSV)
	require.True(t, os.IsNotExist(statErr), "results written: %v", statErr)
}

func TestRun_LinkBlankHeaderIgnored(t *testing.T) {
	t.Parallel()

	csv := "FieldID,values,description,\n" +
		idNames + ",John,Names,\n"
	job := linkJob(writeFile(t, t.TempDir(), "in.csv", csv))

	res, err := testRunner().Run(context.Background(), job)
	require.NoError(t, err)
	require.Equal(t, []string{"FieldID", "values", "description"}, res.Headers)
	require.Len(t, res.Issues, 1)
	require.Equal(t, baseURL+"?"+idNames+"=John", res.Links[0].URL)
}

func TestRun_MissingSource(t *testing.T) {
	t.Parallel()

	job := linkJob(filepath.Join(t.TempDir(), "nope.csv"))
	_, err := testRunner().Run(context.Background(), job)
	require.True(t, errors.Is(err, schema.ErrCsvParse), "err=%v", err)
}

type fakeRepo struct {
	ensured   bool
	runs      []storage.Run
	artifacts []storage.ArtifactRow
	batchID   string
	closed    int
}

func (f *fakeRepo) Close()                                 { f.closed++ }
func (f *fakeRepo) EnsureTables(ctx context.Context) error { f.ensured = true; return nil }
func (f *fakeRepo) SaveRun(ctx context.Context, run storage.Run) error {
	f.runs = append(f.runs, run)
	return nil
}
func (f *fakeRepo) InsertArtifacts(ctx context.Context, runID string, rows []storage.ArtifactRow) (int64, error) {
	f.artifacts = append(f.artifacts, rows...)
	return int64(len(rows)), nil
}
func (f *fakeRepo) MarkSubmitted(ctx context.Context, runID, batchID string) error {
	f.batchID = batchID
	return nil
}
func (f *fakeRepo) ListArtifacts(ctx context.Context, runID string) ([]storage.ArtifactRow, error) {
	return f.artifacts, nil
}

type fakeSubmitter struct {
	got    []letters.BulkRequest
	result letters.BulkResult
	err    error
}

func (f *fakeSubmitter) Submit(ctx context.Context, req letters.BulkRequest) (letters.BulkResult, error) {
	f.got = append(f.got, req)
	return f.result, f.err
}

func letterJob(path string) config.Job {
	return config.Job{
		Job:       "letters",
		Mode:      config.ModeLetter,
		Source:    config.Source{Kind: "file", File: &config.FileSource{Path: path}},
		Parser:    config.Parser{Kind: "csv"},
		Delimiter: ",",
		Fields: schema.FieldSet{
			{Name: "name", Required: true},
			{Name: "amount"},
		},
		Letter: config.LetterConfig{
			TemplateID:   "7",
			Notification: config.NotificationConfig{Method: "email"},
		},
	}
}

func TestRun_LetterSubmitAndStore(t *testing.T) {
	t.Parallel()

	csv := "Name,Amount,Email Address\n" +
		"Ann,10,ann@x.com\n" +
		"Bob,,bob@x.com\n" +
		"Cy,30,cy@x.com\n"
	job := letterJob(writeFile(t, t.TempDir(), "in.csv", csv))
	job.Storage = config.StorageConfig{Kind: "fake", DSN: "x"}
	job.Export.LabelField = "name"

	repo := &fakeRepo{}
	sub := &fakeSubmitter{result: letters.BulkResult{BatchID: "batch-9"}}
	r := testRunner()
	r.Submitter = sub
	r.NewRepository = func(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
		require.Equal(t, "fake", cfg.Kind)
		return repo, nil
	}

	res, err := r.Run(context.Background(), job)
	require.NoError(t, err)
	require.NoError(t, res.RecipientErr)
	require.Equal(t, "batch-9", res.BatchID)
	require.Equal(t, []string{"ann@x.com", "bob@x.com", "cy@x.com"}, res.Recipients)

	require.Len(t, sub.got, 1)
	req := sub.got[0]
	require.Equal(t, 7, req.TemplateID)
	require.Equal(t, "EMAIL", req.NotificationMethod)
	require.Equal(t, map[string]string{"name": "Ann", "amount": "10"}, req.LettersParams[0])
	require.Equal(t, map[string]string{"name": "Bob"}, req.LettersParams[1])

	require.True(t, repo.ensured)
	require.Len(t, repo.runs, 1)
	require.Equal(t, "run-1", repo.runs[0].ID)
	require.Equal(t, 3, repo.runs[0].Combinations)
	require.Len(t, repo.artifacts, 3)
	require.Equal(t, "Bob", repo.artifacts[1].Label)
	require.JSONEq(t, `{"name":"Bob"}`, repo.artifacts[1].Artifact)
	require.Len(t, repo.artifacts[0].Fingerprint, 64)
	require.Equal(t, "batch-9", repo.batchID)
	require.Equal(t, 1, repo.closed)
}

func TestRun_LetterRecipientMismatch(t *testing.T) {
	t.Parallel()

	csv := "name,amount,email\n" +
		"Ann,10,ann@x.com\n" +
		"Bob,20,\n" +
		"Cy,30,cy@x.com\n"

	t.Run("generate_only", func(t *testing.T) {
		t.Parallel()
		job := letterJob(writeFile(t, t.TempDir(), "in.csv", csv))
		res, err := testRunner().Run(context.Background(), job)
		require.NoError(t, err)
		require.Len(t, res.Combinations, 3)
		require.Len(t, res.Letters, 3)
		require.Nil(t, res.Recipients)
		require.True(t, errors.Is(res.RecipientErr, schema.ErrCountMismatch), "err=%v", res.RecipientErr)
	})

	t.Run("submit_refused", func(t *testing.T) {
		t.Parallel()
		job := letterJob(writeFile(t, t.TempDir(), "in.csv", csv))
		sub := &fakeSubmitter{result: letters.BulkResult{BatchID: "never"}}
		r := testRunner()
		r.Submitter = sub
		_, err := r.Run(context.Background(), job)
		require.True(t, errors.Is(err, errRecipientsRequired), "err=%v", err)
		require.True(t, errors.Is(err, schema.ErrCountMismatch), "err=%v", err)
		require.Empty(t, sub.got)
	})
}

func TestRun_LetterRejected(t *testing.T) {
	t.Parallel()

	csv := "name,amount\nAnn,10\n"
	job := letterJob(writeFile(t, t.TempDir(), "in.csv", csv))
	job.Letter.Notification = config.NotificationConfig{}

	sub := &fakeSubmitter{
		result: letters.BulkResult{Errors: []letters.APIError{{ID: "0", Message: "bad param"}}},
		err:    letters.ErrRejected,
	}
	r := testRunner()
	r.Submitter = sub

	res, err := r.Run(context.Background(), job)
	require.True(t, errors.Is(err, letters.ErrRejected), "err=%v", err)
	require.Len(t, res.SubmitErrors, 1)
	require.Empty(t, sub.got[0].Recipients)
}

func TestRun_LetterRequiredFieldMissing(t *testing.T) {
	t.Parallel()

	csv := "name,amount\nAnn,10\n,20\n"
	job := letterJob(writeFile(t, t.TempDir(), "in.csv", csv))
	job.Letter.Notification = config.NotificationConfig{}

	_, err := testRunner().Run(context.Background(), job)
	var se *schema.Error
	require.True(t, errors.As(err, &se), "err=%v", err)
	require.Equal(t, schema.ErrRequiredFieldMissing, se.Kind)
	require.Equal(t, "name", se.Field)
	require.Equal(t, 1, se.Index)
}

func TestRun_LetterRequiredColumnMissing(t *testing.T) {
	t.Parallel()

	job := letterJob(writeFile(t, t.TempDir(), "in.csv", "amount\n10\n20\n"))
	job.Letter.Notification = config.NotificationConfig{}

	res, err := testRunner().Run(context.Background(), job)
	require.True(t, errors.Is(err, schema.ErrStructuralCsv), "err=%v", err)
	require.False(t, errors.Is(err, schema.ErrRequiredFieldMissing), "err=%v", err)
	require.ErrorContains(t, err, "map: ")
	var se *schema.Error
	require.True(t, errors.As(err, &se))
	require.Equal(t, "name", se.Field)
	require.Empty(t, res.Combinations)
}

func TestRun_LetterExportHasNoURLColumn(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	job := letterJob(writeFile(t, dir, "in.csv", "name,amount\nAnn,10\n"))
	job.Letter.Notification = config.NotificationConfig{}
	job.Export.IncludeURL = true
	job.Export.LabelField = "name"
	job.Output.ResultsCSV = filepath.Join(dir, "results.csv")

	res, err := testRunner().Run(context.Background(), job)
	require.NoError(t, err)
	require.Equal(t, []string{"Label"}, res.Export.Header)
	require.Equal(t, "Label\nAnn\n", readFile(t, job.Output.ResultsCSV))
}

func TestRun_LetterManualMappingWins(t *testing.T) {
	t.Parallel()

	csv := "name,full name,amount\nA,Ann Lee,10\n"
	job := letterJob(writeFile(t, t.TempDir(), "in.csv", csv))
	job.Letter.Notification = config.NotificationConfig{}
	job.Mapping = map[string]string{"name": "full name", "amount": "gone"}

	res, err := testRunner().Run(context.Background(), job)
	require.NoError(t, err)
	require.Equal(t, "full name", res.Mapping["name"])
	require.Equal(t, "amount", res.Mapping["amount"])
	require.Equal(t, []string{"amount"}, res.Stale)
	require.Equal(t, "Ann Lee", res.Letters[0].Params["name"])
}

func TestRecipients(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		method string
		cells  []string
		n      int
		want   []string
		err    error
	}{
		{name: "sms_normalized", method: "sms", cells: []string{"9123 4567", "+65 9123-4567"}, n: 2, want: []string{"91234567", "+6591234567"}},
		{name: "three_combos_two_recipients", method: "email", cells: []string{"a@x.com", "", "b@x.com"}, n: 3, err: schema.ErrCountMismatch},
		{name: "bad_phone", method: "sms", cells: []string{"12345678"}, n: 1, err: schema.ErrRecipientFormat},
		{name: "email_for_sms", method: "sms", cells: []string{"a@x.com"}, n: 1, err: schema.ErrRecipientFormat},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, err := Recipients(tc.method, tc.cells, tc.n)
			if tc.err != nil {
				if !errors.Is(err, tc.err) {
					t.Fatalf("err=%v, want %v", err, tc.err)
				}
				if got != nil {
					t.Fatalf("got=%v, want nil on error", got)
				}
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestRecipientHeader(t *testing.T) {
	t.Parallel()

	headers := []string{"Name", "Mobile No.", "E-mail Address"}

	h, err := recipientHeader("sms", "", headers)
	require.NoError(t, err)
	require.Equal(t, "Mobile No.", h)

	h, err = recipientHeader("email", "", headers)
	require.NoError(t, err)
	require.Equal(t, "E-mail Address", h)

	h, err = recipientHeader("email", "Name", headers)
	require.NoError(t, err)
	require.Equal(t, "Name", h)

	_, err = recipientHeader("email", "Missing", headers)
	require.True(t, errors.Is(err, schema.ErrStructuralCsv))
}
