package report

import (
	"context"
	"testing"

	"github.com/hpungsan/stump/internal/config"
	"github.com/hpungsan/stump/internal/db"
	"github.com/hpungsan/stump/internal/errors"
)

func TestGenerate_Errors(t *testing.T) {
	database, err := db.Init(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	defer database.Close()

	tests := []struct {
		name     string
		database bool
		input    Input
		code     errors.ErrorCode
	}{
		{"bad format", true, Input{TracePath: "t.json", Format: "pdf"}, errors.ErrInvalidRequest},
		{"nothing to report", true, Input{}, errors.ErrInvalidRequest},
		{"unknown id", true, Input{ID: "01NOPE"}, errors.ErrNotFound},
		{"id without index", false, Input{ID: "01NOPE"}, errors.ErrInvalidRequest},
		{"missing trace", true, Input{TracePath: "/does/not/exist.json"}, errors.ErrFileNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := database
			if !tt.database {
				d = nil
			}
			_, err := Generate(context.Background(), nil, config.DefaultConfig(), d, tt.input)
			if !errors.Is(err, tt.code) {
				t.Errorf("Generate() error = %v, want %s", err, tt.code)
			}
		})
	}
}
