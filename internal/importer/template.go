package importer

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/JonMunkholm/assetconsole/internal/core"
)

// TemplateContentType is the media type of the import template.
const TemplateContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// TemplateFileName returns the download name of def's import template.
func TemplateFileName(def core.TableDefinition) string {
	return def.Info.Label + "_등록_양식.xlsx"
}

// WriteTemplate writes a blank import workbook: one sheet named after the
// table with the canonical headers in bold and one example row.
func WriteTemplate(w io.Writer, def core.TableDefinition) error {
	spec := def.Registration
	if spec == nil {
		return fmt.Errorf("%w: %s", core.ErrNoRegistration, def.Info.Key)
	}

	f := excelize.NewFile()
	defer f.Close()

	sheet := def.Info.Label
	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		return fmt.Errorf("write template: %w", err)
	}

	headers := spec.TemplateHeaders()
	if err := f.SetSheetRow(sheet, "A1", &headers); err != nil {
		return fmt.Errorf("write template header: %w", err)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("write template header: %w", err)
	}
	if err := f.SetRowStyle(sheet, 1, 1, bold); err != nil {
		return fmt.Errorf("write template header: %w", err)
	}

	if len(spec.Example) > 0 {
		example := make([]string, len(headers))
		copy(example, spec.Example)
		if err := f.SetSheetRow(sheet, "A2", &example); err != nil {
			return fmt.Errorf("write template example: %w", err)
		}
	}

	last, err := excelize.ColumnNumberToName(len(headers))
	if err != nil {
		return fmt.Errorf("write template: %w", err)
	}
	if err := f.SetColWidth(sheet, "A", last, 16); err != nil {
		return fmt.Errorf("write template: %w", err)
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write template: %w", err)
	}
	return nil
}
