package archive

import (
	"strings"

	"github.com/pkg/errors"

	"github.com/i474232898/knmi-hourly/internal/common"
)

// HeaderMarker starts the column header line of every KNMI hourly file.
const HeaderMarker = "STN,"

// ErrNoHeader is returned for an entry without a column header line.
var ErrNoHeader = errors.New("column header " + HeaderMarker + " not found")

// Normalize turns one archive entry into canonical CSV: the free-text
// preamble is dropped, padding is removed, a header continuation line is
// joined back onto the header and empty or "#" lines are skipped. The header
// line is only kept when withHeader is set. Row order is preserved and every
// emitted line ends with a line feed.
func Normalize(text string, withHeader bool) (string, error) {
	i := strings.Index(text, HeaderMarker)
	if i < 0 {
		return "", ErrNoHeader
	}
	lines := strings.Split(common.StripSpaceKeepLines(text[i:]), "\n")

	header, rows := lines[0], lines[1:]
	if len(rows) > 0 && strings.HasPrefix(rows[0], ",") {
		header += rows[0]
		rows = rows[1:]
	}

	var b strings.Builder
	if withHeader {
		b.WriteString(header)
		b.WriteByte('\n')
	}
	for _, row := range rows {
		if isArtifact(row) {
			continue
		}
		b.WriteString(row)
		b.WriteByte('\n')
	}
	return b.String(), nil
}

func isArtifact(line string) bool {
	return strings.Trim(line, "#") == ""
}
