// Package listgen supplies song titles for the build phase.
//
// Titles come from two sources: a plain text file (one song per line) or a
// conversational [Generator]. The generator itself is an external
// collaborator; this package defines the boundary and the response parsing,
// not a chat client.
package listgen

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"mixcard/internal/shared"
)

// Generator produces a song list from a natural-language prompt. prior holds
// the titles from the previous round so a refinement request ("swap track 3")
// returns the full updated list.
type Generator interface {
	Generate(ctx context.Context, prompt string, prior []string) ([]string, error)
}

// LoadTitles reads song titles from a text file, one per line. Blank lines
// and lines starting with "#" are ignored.
func LoadTitles(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open song file: %w", err)
	}
	defer f.Close()

	titles, err := ReadTitles(f)
	if err != nil {
		return nil, err
	}
	if len(titles) == 0 {
		return nil, fmt.Errorf("%w: no songs found in %s, add one song per line", shared.ErrInvalidInput, path)
	}
	return titles, nil
}

// ReadTitles reads titles from r with the same filtering as [LoadTitles].
// An empty result is not an error here; stdin pipelines decide that.
func ReadTitles(r io.Reader) ([]string, error) {
	var titles []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		titles = append(titles, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read titles: %w", err)
	}
	return titles, nil
}

type songEntry struct {
	Title  string `json:"title"`
	Artist string `json:"artist"`
}

// ParseResponse extracts a song list from a generator reply. The reply is
// expected to carry a JSON array of {title, artist} objects inside a fenced
// code block; surrounding prose is ignored. Returns "Title - Artist" lines.
func ParseResponse(text string) ([]string, error) {
	start := strings.Index(text, "```json")
	if start == -1 {
		start = strings.Index(text, "```")
	}
	if start == -1 {
		return nil, fmt.Errorf("%w: response has no code block", shared.ErrInvalidInput)
	}

	open := strings.Index(text[start:], "[")
	if open == -1 {
		return nil, fmt.Errorf("%w: response has no song array", shared.ErrInvalidInput)
	}
	open += start
	closing := strings.Index(text[open:], "]")
	if closing == -1 {
		return nil, fmt.Errorf("%w: response has no song array", shared.ErrInvalidInput)
	}
	closing += open

	var entries []songEntry
	if err := json.Unmarshal([]byte(text[open:closing+1]), &entries); err != nil {
		return nil, fmt.Errorf("%w: failed to parse song array: %v", shared.ErrInvalidInput, err)
	}

	var titles []string
	for _, entry := range entries {
		if entry.Title == "" {
			continue
		}
		if entry.Artist == "" {
			titles = append(titles, entry.Title)
			continue
		}
		titles = append(titles, entry.Title+" - "+entry.Artist)
	}
	if len(titles) == 0 {
		return nil, fmt.Errorf("%w: song array is empty", shared.ErrInvalidInput)
	}
	return titles, nil
}
