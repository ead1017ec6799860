// Package pdf implementa el reporte de niveles de stock en PDF usando Maroto v2.
//
// Layout de la página A4:
//
//	┌─────────────────────────────────────────────────────────────┐
//	│  HEADER: Nombre de la app + Fecha de generación             │
//	│  ─────────────────────────────────────────────────────────  │
//	│  TABLA: Ítem | Bodega | Nivel de stock | Actualizado        │
//	└─────────────────────────────────────────────────────────────┘
package pdf

import (
	"context"
	"fmt"
	"strconv"
	"time"

	maroto "github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/line"
	"github.com/johnfercher/maroto/v2/pkg/components/row"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/consts/pagesize"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/props"

	"github.com/tu-usuario/warehouse-ledger/internal/application/dto"
)

var (
	colorPrimary = &props.Color{Red: 0, Green: 70, Blue: 127}
	colorGray    = &props.Color{Red: 100, Green: 100, Blue: 100}
)

// StockReportGenerator genera el reporte de stock usando Maroto v2.
type StockReportGenerator struct{}

// NewStockReportGenerator construye el generador.
func NewStockReportGenerator() *StockReportGenerator { return &StockReportGenerator{} }

// GenerateStockReport genera el PDF con los niveles actuales y devuelve sus bytes.
func (g *StockReportGenerator) GenerateStockReport(_ context.Context, appName string, levels []dto.StockResponse) ([]byte, error) {
	cfg := config.NewBuilder().
		WithPageSize(pagesize.A4).
		WithLeftMargin(10).WithRightMargin(10).
		WithTopMargin(10).WithBottomMargin(10).
		WithDefaultFont(&props.Font{Family: "helvetica", Size: 9}).
		WithTitle("Reporte de stock", true).
		WithAuthor(appName, true).
		Build()

	m := maroto.New(cfg)

	m.AddRows(headerRow(appName))
	m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.5}))
	m.AddRows(tableHeaderRow())
	for _, s := range levels {
		m.AddRows(stockRow(s))
	}

	doc, err := m.Generate()
	if err != nil {
		return nil, fmt.Errorf("pdf: generar reporte de stock: %w", err)
	}
	return doc.GetBytes(), nil
}

func headerRow(appName string) core.Row {
	fecha := time.Now().Format("02/01/2006 15:04")
	return row.New(14).Add(
		col.New(8).Add(
			text.New(appName, props.Text{
				Style: fontstyle.Bold, Size: 13, Color: colorPrimary, Top: 1,
			}),
			text.New("Reporte de niveles de stock", props.Text{
				Size: 9, Top: 9, Color: colorGray,
			}),
		),
		col.New(4).Add(
			text.New("Generado: "+fecha, props.Text{
				Size: 9, Top: 1, Align: align.Right, Color: colorGray,
			}),
		),
	)
}

func tableHeaderRow() core.Row {
	header := props.Text{Style: fontstyle.Bold, Size: 9, Color: colorPrimary}
	return row.New(8).Add(
		col.New(4).Add(text.New("Ítem", header)),
		col.New(4).Add(text.New("Bodega", header)),
		col.New(2).Add(text.New("Stock", propsRight(header))),
		col.New(2).Add(text.New("Actualizado", propsRight(header))),
	)
}

func stockRow(s dto.StockResponse) core.Row {
	cell := props.Text{Size: 8}
	return row.New(6).Add(
		col.New(4).Add(text.New(s.ItemID, cell)),
		col.New(4).Add(text.New(s.WarehouseID, cell)),
		col.New(2).Add(text.New(strconv.FormatInt(s.StockLevel, 10), propsRight(cell))),
		col.New(2).Add(text.New(s.UpdatedAt.Format("02/01/2006"), propsRight(cell))),
	)
}

func propsRight(p props.Text) props.Text {
	p.Align = align.Right
	return p
}
