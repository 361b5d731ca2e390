// SPDX-License-Identifier: MIT
package archive

import (
	"context"
	"os"

	"github.com/screendiary/screendiary/internal/metrics"
)

// pruneBatch limits how many segment rows one budget pass loads at a time.
const pruneBatch = 100

// Prune deletes the oldest segments until total storage fits the budget.
// Rows referencing a pruned segment keep their pointers; reads of those
// frames report the frame as gone.
func (a *Archiver) Prune(ctx context.Context) error {
	budget := a.cfg.Storage.MaxStorageBytes()
	total, err := a.st.TotalStorageBytes(ctx)
	if err != nil {
		return err
	}

	for total > budget {
		segments, err := a.st.OldestVideoSegments(ctx, pruneBatch)
		if err != nil {
			return err
		}
		if len(segments) == 0 {
			break
		}
		for _, seg := range segments {
			if total <= budget {
				return nil
			}
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := os.Remove(seg.Filepath); err != nil && !os.IsNotExist(err) {
				a.log.Warn().Err(err).
					Str("event", "archiver.prune_remove_failed").
					Str("path", seg.Filepath).
					Msg("segment file removal failed")
			}
			if err := a.st.DeleteVideoSegment(ctx, seg.ID); err != nil {
				return err
			}
			total -= seg.FileSize
			metrics.PrunedBytesTotal.Add(float64(seg.FileSize))
			a.log.Info().
				Str("event", "archiver.segment_pruned").
				Str("path", seg.Filepath).
				Int64("bytes", seg.FileSize).
				Msg("segment pruned")
		}
	}
	return nil
}
