// Package parser names the supported flat-file formats and the contract the
// format packages (csv, json, parquet) implement.
package parser

import (
	"fmt"
	"strings"

	"github.com/YogovAI/Product-Development-Yogov/internal/batch"
	"github.com/YogovAI/Product-Development-Yogov/internal/etlerr"
)

// Format is the closed set of source formats.
type Format string

const (
	CSV     Format = "csv"
	JSON    Format = "json"
	Parquet Format = "parquet"
)

// ParseFormat maps a document value onto a Format. "jsonl" and "ndjson"
// are JSON: the JSON reader accepts both a top-level array and one object
// per line.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "csv":
		return CSV, nil
	case "json", "jsonl", "ndjson":
		return JSON, nil
	case "parquet":
		return Parquet, nil
	}
	return "", etlerr.New(etlerr.UnsupportedFormat, "reader", "format %q", s)
}

// BatchReader yields consecutive batches of at most n rows. It returns
// io.EOF, and a nil batch, once no rows remain.
type BatchReader interface {
	Read(n int) (*batch.Batch, error)
}

// DedupeHeaders makes header names unique by suffixing repeats with .1, .2
// and so on, keeping the first occurrence unchanged.
func DedupeHeaders(headers []string) []string {
	used := make(map[string]bool, len(headers))
	next := make(map[string]int, len(headers))
	out := make([]string, len(headers))
	for i, h := range headers {
		name := h
		for used[name] {
			next[h]++
			name = fmt.Sprintf("%s.%d", h, next[h])
		}
		used[name] = true
		out[i] = name
	}
	return out
}
