package audit

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"strconv"
	"time"

	"github.com/doorpasses/trustcore/pkg/errors"
)

// csvColumns is the fixed export column order
var csvColumns = []string{
	"id",
	"action",
	"actor_user_id",
	"target_user_id",
	"organization_id",
	"occurred_at",
	"message",
	"metadata",
}

// ExportCSV materializes the events matching the filter as RFC 4180 CSV with
// one header row. Timestamps are ISO-8601; metadata is embedded as a JSON
// string in the final column. The output is stable for a given filter and
// ledger snapshot.
func (s *Service) ExportCSV(ctx context.Context, filter Filter) ([]byte, error) {
	events, err := s.Query(ctx, filter)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	if err := writer.Write(csvColumns); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to write CSV header")
	}

	for _, event := range events {
		metadata := "{}"
		if event.Metadata != nil {
			encoded, err := json.Marshal(event.Metadata)
			if err != nil {
				return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to encode event metadata")
			}
			metadata = string(encoded)
		}

		targetUserID := ""
		if event.TargetUserID != nil {
			targetUserID = event.TargetUserID.String()
		}
		organizationID := ""
		if event.OrganizationID != nil {
			organizationID = event.OrganizationID.String()
		}

		row := []string{
			strconv.FormatInt(event.ID, 10),
			string(event.Action),
			event.ActorUserID.String(),
			targetUserID,
			organizationID,
			event.OccurredAt.UTC().Format(time.RFC3339),
			event.Message,
			metadata,
		}
		if err := writer.Write(row); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to write CSV row")
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to flush CSV output")
	}

	return buf.Bytes(), nil
}

// ExportJSON materializes the events matching the filter as a JSON array with
// the same field set as the CSV export. Metadata stays a nested JSON value,
// not a double-encoded string.
func (s *Service) ExportJSON(ctx context.Context, filter Filter) ([]byte, error) {
	events, err := s.Query(ctx, filter)
	if err != nil {
		return nil, err
	}

	// An empty result exports as [], not null
	if events == nil {
		events = []Event{}
	}

	encoded, err := json.Marshal(events)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to encode events")
	}
	return encoded, nil
}
