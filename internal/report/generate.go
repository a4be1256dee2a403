package report

import (
	"context"
	"database/sql"

	"go.uber.org/zap"

	"github.com/hpungsan/stump/internal/capture"
	"github.com/hpungsan/stump/internal/config"
	"github.com/hpungsan/stump/internal/db"
	"github.com/hpungsan/stump/internal/errors"
)

// Formats accepted by Generate.
const (
	FormatMarkdown = "markdown"
	FormatHTML     = "html"
)

// Input contains parameters for Generate. Exactly one of TracePath and ID
// is needed; ID wins when both are set.
type Input struct {
	TracePath string
	ID        string // recorded capture; requires an index
	Format    string // markdown (default) or html
}

// Output contains the result of Generate.
type Output struct {
	ID     string `json:"id"`
	Format string `json:"format"`
	Text   string `json:"text"`
}

// Generate inspects a trace, or the trace behind a recorded capture, and
// renders the report.
func Generate(ctx context.Context, logger *zap.Logger, cfg *config.Config, database *sql.DB, input Input) (*Output, error) {
	format := input.Format
	if format == "" {
		format = FormatMarkdown
	}
	if format != FormatMarkdown && format != FormatHTML {
		return nil, errors.NewInvalidRequest("format must be markdown or html")
	}

	var rec *db.Capture
	tracePath := input.TracePath
	if input.ID != "" {
		var err error
		rec, err = capture.Get(database, input.ID)
		if err != nil {
			return nil, err
		}
		tracePath = rec.TracePath
	}
	if tracePath == "" {
		return nil, errors.NewInvalidRequest("a trace path or capture id is required")
	}

	var id string
	if rec != nil {
		id = rec.ID
	}
	insp, err := capture.Inspect(ctx, logger, cfg, tracePath, id)
	if err != nil {
		return nil, err
	}

	text := Markdown(insp, rec)
	if format == FormatHTML {
		text, err = HTML("Capture "+insp.ID, text)
		if err != nil {
			return nil, err
		}
	}
	return &Output{ID: insp.ID, Format: format, Text: text}, nil
}
