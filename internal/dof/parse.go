package dof

import (
	"fmt"
	"io"
	"runtime"
	"strings"
	"sync"
)

// ParseOptions controls how a DOF file is parsed.
type ParseOptions struct {
	// Workers is the number of goroutines extracting records.
	// 0 means runtime.NumCPU(); 1 parses serially.
	Workers int
}

// Stats counts how each input line was classified.
type Stats struct {
	Lines             int `json:"lines"`
	Header            int `json:"header"`
	Separator         int `json:"separator"`
	TooShort          int `json:"too_short"`
	Records           int `json:"records"`
	UnknownHemisphere int `json:"unknown_hemisphere"` // Records with a non N/S/E/W hemisphere code.
}

// parsed is the per-line outcome; rec is only meaningful for Data lines.
type parsed struct {
	class LineClass
	rec   Record
}

func parseOne(line string, index int) parsed {
	class := Classify(line, index)
	if class != Data {
		return parsed{class: class}
	}
	return parsed{class: Data, rec: ParseLine(line, index)}
}

// ParseLines classifies and extracts every line. Lines are processed
// independently, possibly in parallel; the returned records keep input order.
func ParseLines(lines []string, opts ParseOptions) ([]Record, Stats) {
	results := make([]parsed, len(lines))

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > len(lines) {
		workers = len(lines)
	}

	if workers <= 1 {
		for i, line := range lines {
			results[i] = parseOne(line, i)
		}
	} else {
		// Each worker owns a contiguous chunk of result slots.
		chunk := (len(lines) + workers - 1) / workers
		var wg sync.WaitGroup
		for start := 0; start < len(lines); start += chunk {
			end := min(start+chunk, len(lines))
			wg.Add(1)
			go func(start, end int) {
				defer wg.Done()
				for i := start; i < end; i++ {
					results[i] = parseOne(lines[i], i)
				}
			}(start, end)
		}
		wg.Wait()
	}

	st := Stats{Lines: len(lines)}
	records := make([]Record, 0, len(lines))
	for _, p := range results {
		switch p.class {
		case Header:
			st.Header++
		case Separator:
			st.Separator++
		case TooShort:
			st.TooShort++
		case Data:
			st.Records++
			if !p.rec.HemispheresKnown() {
				st.UnknownHemisphere++
			}
			records = append(records, p.rec)
		}
	}

	return records, st
}

// SplitLines splits text on newlines, dropping carriage returns and the
// empty remainder after a final newline.
func SplitLines(text string) []string {
	text = strings.TrimSuffix(text, "\n")
	if text == "" {
		return nil
	}
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\r")
	}
	return lines
}

// ParseReader reads r completely and parses it.
func ParseReader(r io.Reader, opts ParseOptions) ([]Record, Stats, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, Stats{}, fmt.Errorf("read dof: %w", err)
	}
	records, st := ParseLines(SplitLines(string(data)), opts)
	return records, st, nil
}

// ParseFile opens path (plain, .gz, .zst or .zip) and parses it.
func ParseFile(path string, opts ParseOptions) ([]Record, Stats, error) {
	rc, err := Open(path)
	if err != nil {
		return nil, Stats{}, err
	}
	defer rc.Close()

	return ParseReader(rc, opts)
}
