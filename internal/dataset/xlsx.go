package dataset

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"

	apperrors "sealevel/internal/errors"
	"sealevel/pkg/contracts/domain"
)

// ParseXLSX reads the first worksheet of an Excel workbook
func (l *Loader) ParseXLSX(name string, source domain.DatasetSource, raw []byte) (*domain.Dataset, error) {
	f, err := excelize.OpenReader(bytes.NewReader(raw))
	if err != nil {
		return nil, apperrors.NewParsingError("open workbook", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, apperrors.NewParsingError("workbook has no sheets", ErrEmptyInput)
	}

	rows, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, apperrors.NewParsingError(fmt.Sprintf("read sheet %q", sheets[0]), err)
	}
	if len(rows) == 0 {
		return nil, apperrors.NewParsingError(fmt.Sprintf("sheet %q is empty", sheets[0]), ErrEmptyInput)
	}

	return l.FromRecords(name, source, rows, Fingerprint(raw, l.opts.YearColumn, l.opts.LevelColumn))
}
