package scoreboard

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"
)

const (
	sheetTeams        = "Teams"
	sheetParticipants = "Participants"
	sheetAccounts     = "Accounts"
)

// ExportXLSX writes one sheet per level of the board. names holds display names
// in Board.UserIDs order; missing entries fall back to the user ID.
func ExportXLSX(b Board, names []string) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), sheetTeams); err != nil {
		return nil, fmt.Errorf("failed to rename sheet: %w", err)
	}
	for _, s := range []string{sheetParticipants, sheetAccounts} {
		if _, err := f.NewSheet(s); err != nil {
			return nil, fmt.Errorf("failed to create sheet %q: %w", s, err)
		}
	}

	teams := [][]any{{"Rank", "Team", "Score"}}
	participants := [][]any{{"Team", "Participant", "User ID", "Bonus", "Score"}}
	accounts := [][]any{{"Team", "Participant", "RSN", "Metric", "Score"}}

	n := 0
	for rank, t := range b.Teams {
		teams = append(teams, []any{rank + 1, t.Name, t.Score})
		for _, p := range t.Participants {
			name := p.UserID
			if n < len(names) && names[n] != "" {
				name = names[n]
			}
			n++
			participants = append(participants, []any{t.Name, name, p.UserID, p.CustomScore, p.Score})
			for _, a := range p.Accounts {
				accounts = append(accounts, []any{t.Name, name, a.RSN, "", a.Score})
				for _, m := range a.Metrics {
					accounts = append(accounts, []any{t.Name, name, a.RSN, m.Key, m.Score})
				}
			}
		}
	}

	for sheet, rows := range map[string][][]any{sheetTeams: teams, sheetParticipants: participants, sheetAccounts: accounts} {
		if err := writeRows(f, sheet, rows); err != nil {
			return nil, err
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func writeRows(f *excelize.File, sheet string, rows [][]any) error {
	for i, r := range rows {
		axis, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return fmt.Errorf("failed to address row %d: %w", i+1, err)
		}
		if err := f.SetSheetRow(sheet, axis, &r); err != nil {
			return fmt.Errorf("failed to write %s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}
