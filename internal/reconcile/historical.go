package reconcile

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/captrades/captrades/pkg/models"
)

// IngestHistorical reconciles an archived transaction dump: a JSON array of
// raw records in the historical export format.
func (e *Engine) IngestHistorical(ctx context.Context, r io.Reader) (*Report, error) {
	var records []models.RawRecord
	if err := json.NewDecoder(r).Decode(&records); err != nil {
		return nil, fmt.Errorf("decode historical dump: %w", err)
	}
	return e.Ingest(ctx, records)
}
