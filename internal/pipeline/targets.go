package pipeline

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/ShaunandDavid/lead-generator-firecrawl/internal/export"
)

// Column titles skipped when they head a workbook's first column.
var headerCells = map[string]bool{"domain": true, "domains": true, "url": true, "website": true}

type targetsFile struct {
	Targets []string `yaml:"targets"`
}

// LoadTargetsFile reads the domains listed in path. The file is either a
// YAML document with a top-level "targets" list or one domain per line.
// Blank lines and lines starting with "#" are ignored. An .xlsx workbook
// is read from the first column of its first sheet.
func LoadTargetsFile(path string) ([]string, error) {
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		if _, err := os.Stat(path); err != nil {
			return nil, eris.Wrapf(err, "pipeline: domains file not found: %s", path)
		}
		cells, err := export.ReadColumn(path, 0, 0)
		if err != nil {
			return nil, eris.Wrapf(err, "pipeline: read domains workbook %s", path)
		}
		if len(cells) > 0 && headerCells[strings.ToLower(cells[0])] {
			cells = cells[1:]
		}
		return cleanTargets(cells), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "pipeline: domains file not found: %s", path)
	}
	return ParseTargets(data), nil
}

// ParseTargets parses the contents of a domains file.
func ParseTargets(data []byte) []string {
	var tf targetsFile
	if err := yaml.Unmarshal(data, &tf); err == nil && len(tf.Targets) > 0 {
		return cleanTargets(tf.Targets)
	}
	lines := strings.Split(strings.ReplaceAll(string(data), "\r\n", "\n"), "\n")
	return cleanTargets(lines)
}

func cleanTargets(in []string) []string {
	out := make([]string, 0, len(in))
	for _, line := range in {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return out
}
