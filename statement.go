package ledgerx

import (
	"io"

	"github.com/go-pdf/fpdf"
)

// Statement renders a one-page PDF of the account as it is right now. There
// is no transaction history to list.
func (s *serviceImpl) Statement(w io.Writer, req StatementReq) error {
	acct, err := s.repo.GetAccount(req.AcctID)
	if err != nil {
		return err
	}

	pdf := fpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle("Account statement", true)
	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 16)
	pdf.Cell(0, 10, "Account statement")
	pdf.Ln(14)

	rows := [][2]string{
		{"Account", acct.ID},
		{"Name", acct.Name},
		{"Currency", acct.Currency},
		{"Balance", DisplayAmount(acct.Balance, acct.Digits)},
	}
	pdf.SetFont("Helvetica", "", 12)
	for _, row := range rows {
		pdf.CellFormat(40, 8, row[0], "1", 0, "L", false, 0, "")
		pdf.CellFormat(120, 8, tr(row[1]), "1", 1, "L", false, 0, "")
	}

	if err = pdf.Output(w); err != nil {
		s.log.Err(err).Str("acctID", acct.ID).Msg("error rendering statement")
		return err
	}
	return nil
}
