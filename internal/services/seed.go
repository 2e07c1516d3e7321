package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"trip-record-service/internal/domain"
	"trip-record-service/internal/platform/obs"
)

// Import creates every record through Create so seeds follow the same routing and
// validation as API writes. Records whose session id already exists are skipped,
// which makes re-running a seed harmless.
func (s *RecordService) Import(ctx context.Context, recs []domain.TripRecord) (created int, err error) {
	defer obs.Time(ctx, "records.Import")(&err)

	for i, rec := range recs {
		if _, err := s.Create(ctx, rec); err != nil {
			if errors.Is(err, domain.ErrDuplicateSessionID) {
				log.Printf("req_id=%s op=records.Import skip session=%q: already stored", obs.RequestID(ctx), rec.SessionID)
				continue
			}
			return created, fmt.Errorf("import records: item #%d: %w", i+1, err)
		}
		created++
	}

	return created, nil
}
