package scorecard

import (
	"fmt"
	"io"

	"github.com/raykov/gofpdf"

	"scholarship-exam-service/internal/domain"
)

// Card is everything printed on one scorecard page.
type Card struct {
	CommonName string
	Year       int
	Stream     string
	Row        domain.ScorecardRow
}

// Renderer turns a Card into a document.
type Renderer interface {
	Render(w io.Writer, card Card) error
}

// PDFRenderer renders a one-page A4 scorecard.
type PDFRenderer struct{}

func (PDFRenderer) Render(w io.Writer, card Card) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(fmt.Sprintf("%s scorecard %s", card.CommonName, card.Row.UID), true)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.CellFormat(0, 12, card.CommonName, "", 1, "C", false, 0, "")
	pdf.SetFont("Helvetica", "", 12)
	pdf.CellFormat(0, 8, fmt.Sprintf("Stream %s, %d", card.Stream, card.Year), "", 1, "C", false, 0, "")
	pdf.Ln(10)

	lines := [][2]string{
		{"Candidate", card.Row.Name},
		{"Father's name", card.Row.FatherName},
		{"Mother's name", card.Row.MotherName},
		{"Rank", fmt.Sprintf("%d", card.Row.Rank)},
		{"Score", fmt.Sprintf("%.2f", card.Row.Score)},
		{"Candidate ID", card.Row.UID},
	}
	for _, l := range lines {
		pdf.SetFont("Helvetica", "B", 12)
		pdf.CellFormat(50, 9, l[0], "1", 0, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 12)
		pdf.CellFormat(0, 9, l[1], "1", 1, "L", false, 0, "")
	}

	if err := pdf.Error(); err != nil {
		return fmt.Errorf("render scorecard %s: %w", card.Row.UID, err)
	}
	return pdf.Output(w)
}
