// Package corpus assembles the UTF-8 training blob the tokenizer trains
// on, either from a local file or by paging through the Hugging Face
// datasets server. Examples are joined with a blank line; rows missing
// the requested field are skipped rather than failing the run.
package corpus

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const (
	defaultBaseURL = "https://datasets-server.huggingface.co/rows"
	pageSize       = 100
)

// StreamSpec selects which dataset rows to pull.
type StreamSpec struct {
	Dataset string // e.g. "ai4bharat/samanantar"
	Config  string // dataset config/subset, e.g. "mr"
	Split   string // e.g. "train"
	Field   string // row field to extract, e.g. "tgt"
	// MaxExamples limits how many rows are used; 0 means all.
	MaxExamples int
}

type Loader struct {
	client  *http.Client
	baseURL string
	logger  zerolog.Logger
}

func NewLoader(logger zerolog.Logger) *Loader {
	return &Loader{
		client:  &http.Client{Timeout: 30 * time.Second},
		baseURL: defaultBaseURL,
		logger:  logger,
	}
}

// LoadFile reads an already-assembled corpus from disk.
func (l *Loader) LoadFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read corpus file: %w", err)
	}
	return string(data), nil
}

// SaveText writes the assembled corpus to path so a training run can be
// reproduced without refetching the dataset.
func (l *Loader) SaveText(text, path string) error {
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		return fmt.Errorf("failed to write corpus file: %w", err)
	}
	l.logger.Info().Str("path", path).Int("bytes", len(text)).Msg("Saved training text")
	return nil
}

type rowsResponse struct {
	Rows []struct {
		Row map[string]json.RawMessage `json:"row"`
	} `json:"rows"`
	NumRowsTotal int `json:"num_rows_total"`
}

// Stream pages through the dataset rows endpoint and returns the
// selected fields joined with double newlines. Rows without the field,
// or whose field is not a string, are logged and skipped.
func (l *Loader) Stream(ctx context.Context, spec StreamSpec) (string, error) {
	l.logger.Info().
		Str("dataset", spec.Dataset).
		Str("config", spec.Config).
		Str("split", spec.Split).
		Msg("Loading dataset")

	var texts []string
	for offset := 0; ; offset += pageSize {
		page, err := l.fetchPage(ctx, spec, offset)
		if err != nil {
			return "", err
		}
		if len(page.Rows) == 0 {
			break
		}

		for i, row := range page.Rows {
			raw, ok := row.Row[spec.Field]
			if !ok {
				l.logger.Warn().Int("row", offset+i).Str("field", spec.Field).Msg("Row missing field, skipping")
				continue
			}
			var text string
			if err := json.Unmarshal(raw, &text); err != nil {
				l.logger.Warn().Int("row", offset+i).Str("field", spec.Field).Msg("Row field is not a string, skipping")
				continue
			}
			texts = append(texts, text)
			if len(texts)%1000 == 0 {
				l.logger.Info().Int("examples", len(texts)).Msg("Loading progress")
			}
			if spec.MaxExamples > 0 && len(texts) >= spec.MaxExamples {
				l.logger.Info().Int("examples", len(texts)).Msg("Example budget reached")
				return strings.Join(texts, "\n\n"), nil
			}
		}

		if len(page.Rows) < pageSize || (page.NumRowsTotal > 0 && offset+pageSize >= page.NumRowsTotal) {
			break
		}
	}

	l.logger.Info().Int("examples", len(texts)).Msg("Dataset loaded")
	return strings.Join(texts, "\n\n"), nil
}

func (l *Loader) fetchPage(ctx context.Context, spec StreamSpec, offset int) (*rowsResponse, error) {
	q := url.Values{}
	q.Set("dataset", spec.Dataset)
	if spec.Config != "" {
		q.Set("config", spec.Config)
	}
	q.Set("split", spec.Split)
	q.Set("offset", strconv.Itoa(offset))
	q.Set("length", strconv.Itoa(pageSize))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build dataset request: %w", err)
	}

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch dataset rows: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("dataset server returned %s for offset %d", resp.Status, offset)
	}

	var page rowsResponse
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, fmt.Errorf("failed to decode dataset response: %w", err)
	}
	return &page, nil
}
