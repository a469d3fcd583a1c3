package recovery

import (
	"os"

	"github.com/rodd-oss/rodengine/internal/errs"
	"github.com/rodd-oss/rodengine/internal/rlog"
	"github.com/rodd-oss/rodengine/internal/schema"
	"github.com/rodd-oss/rodengine/internal/snapshot"
	"github.com/rodd-oss/rodengine/internal/storage"
	"github.com/rodd-oss/rodengine/internal/typesys"
)

// Load recovers a catalog from the snapshot at path. If path does not
// exist, Load returns a fresh empty catalog bound to types — this is not
// a failure, it is the state a brand-new instance starts in.
//
// Any other failure — a missing file the caller expected to be there
// under a different I/O error, a bad magic, a checksum mismatch, an
// unsupported version, a malformed schema section, or a table whose
// recorded record size doesn't match its reconstructed schema — aborts
// the whole recovery and returns a *errs.RecoveryFailedError. No
// partially built catalog is ever returned.
func Load(path string, types *typesys.Registry) (*schema.Catalog, error) {
	log := rlog.WithComponent("recovery")

	if _, err := os.Stat(path); os.IsNotExist(err) {
		log.Info().Str("path", path).Msg("no snapshot found, starting empty")
		return schema.NewCatalog(types), nil
	} else if err != nil {
		return nil, &errs.RecoveryFailedError{Kind: "stat", Err: err}
	}

	snap, err := snapshot.ReadFile(path)
	if err != nil {
		return nil, &errs.RecoveryFailedError{Kind: "read", Err: err}
	}

	cat := schema.NewCatalog(types)
	if err := cat.DeserializeJSON(snap.SchemaJSON); err != nil {
		return nil, &errs.RecoveryFailedError{Kind: "schema", Err: err}
	}

	byName := make(map[string]snapshot.TableData, len(snap.Tables))
	for _, td := range snap.Tables {
		byName[td.Name] = td
	}

	for _, table := range cat.Tables() {
		td, ok := byName[table.Name]
		if !ok {
			// Table exists in the reconstructed schema but carries no
			// record data in the snapshot: leave it as the empty buffer
			// CreateTable already populated.
			continue
		}
		if td.RecordSize != table.RecordSize {
			return nil, &errs.RecoveryFailedError{
				Kind: "table-record-size",
				Err:  errs.ErrMalformedPayload,
			}
		}
		buf := storage.NewBufferFromRaw(td.Data, td.RecordSize, td.FreeMask)
		table.Cell.Store(buf)
	}

	log.Info().Str("path", path).Int("tables", len(cat.Tables())).Msg("recovered snapshot")
	return cat, nil
}
