// Package dataset loads batches of transcription job requests from
// spreadsheets, for bulk imports of recorded calls or meetings.
package dataset

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Record is one importable row: an audio URL plus optional language hint.
type Record struct {
	AudioURL string
	Language string
}

// Load reads the first sheet of an xlsx file and extracts one Record per
// row. The audio URL column is auto-detected from header names; rows whose
// URL cell is not an http(s) link are skipped quietly.
func Load(path string) ([]Record, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("dataset: open file: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("dataset: no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("dataset: read rows: %w", err)
	}
	if len(rows) <= 1 {
		return nil, fmt.Errorf("dataset: no data rows")
	}

	audioIdx, languageIdx := detectColumns(rows[0])
	if audioIdx == -1 {
		return nil, fmt.Errorf("dataset: could not detect audio URL column in header %v", rows[0])
	}

	var out []Record
	for _, r := range rows[1:] {
		record := Record{}
		if audioIdx < len(r) {
			record.AudioURL = strings.TrimSpace(r[audioIdx])
		}
		if languageIdx >= 0 && languageIdx < len(r) {
			record.Language = strings.TrimSpace(r[languageIdx])
		}
		if !isHTTPURL(record.AudioURL) {
			continue
		}
		out = append(out, record)
	}
	return out, nil
}

// detectColumns finds the audio URL and language columns by header
// heuristics. Returns -1 for a column that cannot be found.
func detectColumns(header []string) (audioIdx, languageIdx int) {
	audioIdx, languageIdx = -1, -1
	for i, h := range header {
		l := strings.ToLower(strings.TrimSpace(h))
		switch {
		case strings.Contains(l, "audio") || strings.Contains(l, "record") || strings.Contains(l, "url") || strings.Contains(l, "link"):
			if audioIdx == -1 {
				audioIdx = i
			}
		case strings.Contains(l, "lang"):
			if languageIdx == -1 {
				languageIdx = i
			}
		}
	}
	return audioIdx, languageIdx
}

func isHTTPURL(s string) bool {
	l := strings.ToLower(s)
	return strings.HasPrefix(l, "http://") || strings.HasPrefix(l, "https://")
}
