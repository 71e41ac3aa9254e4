package utils

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// ReadURLList reads a newline-delimited URL file. Blank lines and lines
// starting with '#' are ignored.
func ReadURLList(filePath string) ([]string, error) {
	log := GetLogger("config")
	f, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("error opening URL list: %w", err)
	}
	defer f.Close()
	var urls []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		urls = append(urls, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading URL list: %w", err)
	}
	log.Debug().Int("count", len(urls)).Msg("URLs loaded from list file")
	return urls, nil
}

// ReadBatchList reads a YAML batch file of {link, op} entries, where op is
// an optional explicit output name.
func ReadBatchList(filePath string) ([]DownloadEntry, error) {
	log := GetLogger("config")
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("error reading YAML file: %w", err)
	}
	var entries []DownloadEntry
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("error parsing YAML file: %w", err)
	}
	for i, entry := range entries {
		if entry.URL == "" {
			return nil, fmt.Errorf("missing URL for entry %d", i+1)
		}
	}
	log.Debug().Int("count", len(entries)).Msg("Entries loaded from YAML")
	return entries, nil
}
