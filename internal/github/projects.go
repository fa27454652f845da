package github

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
)

// ReadProjects parses a project list CSV. The header names the columns; a
// URL column (url, repo_url or api_url) and a name column (name or
// project_name) are looked up by name, falling back to the second and
// fourth columns of the Apache project listing.
func ReadProjects(r io.Reader) ([]Project, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read project list header: %w", err)
	}

	urlCol, nameCol := 1, 3
	for i, col := range header {
		switch strings.ToLower(strings.TrimSpace(col)) {
		case "url", "repo_url", "api_url":
			urlCol = i
		case "name", "project_name":
			nameCol = i
		}
	}

	var projects []Project
	for line := 2; ; line++ {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read project list line %d: %w", line, err)
		}
		if len(row) <= urlCol || len(row) <= nameCol {
			return nil, fmt.Errorf("project list line %d: expected at least %d columns, got %d",
				line, max(urlCol, nameCol)+1, len(row))
		}
		projects = append(projects, Project{
			Name: strings.TrimSpace(row[nameCol]),
			URL:  strings.TrimSpace(row[urlCol]),
		})
	}

	return projects, nil
}
