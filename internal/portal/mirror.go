package portal

import (
	"context"
	"strings"

	"go.uber.org/zap"
)

// The data grid shows up to twelve year columns after three leading label
// cells.
const (
	yearColsOffset = 3
	yearColsCount  = 12
)

// auditMirrorYears scans the grid's year headers against the value row's
// title attributes and flags every year the portal serves as mirror data,
// so downstream assembly can exclude it. Years that stopped being mirrored
// are unflagged.
func (e *Engine) auditMirrorYears(ctx context.Context, reporter string) error {
	sel := e.cfg.Selectors

	headers, err := e.form.TextAll(ctx, sel.MirrorYearHeaders, e.waits.Check)
	if err != nil {
		return err
	}
	titles, err := e.form.AttributeAll(ctx, sel.MirrorValueCells, "title", e.waits.Check)
	if err != nil {
		return err
	}

	headers = sliceYearCols(headers)
	titles = sliceYearCols(titles)

	for i := 0; i < len(headers) && i < len(titles); i++ {
		// Headers read like "Imported value in 2023"; the year follows " in ".
		_, year, found := strings.Cut(headers[i], " in ")
		if !found {
			continue
		}
		if titles[i] == "Mirror data" {
			zap.L().Info("mirror data year", zap.String("reporter", reporter), zap.String("year", year))
			if err := e.mirror.Record(reporter, year); err != nil {
				return err
			}
		} else if err := e.mirror.Remove(reporter, year); err != nil {
			return err
		}
	}
	return nil
}

func sliceYearCols(cells []string) []string {
	if len(cells) <= yearColsOffset {
		return nil
	}
	end := yearColsOffset + yearColsCount
	if end > len(cells) {
		end = len(cells)
	}
	return cells[yearColsOffset:end]
}
