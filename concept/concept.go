package concept

import "sort"

// DraftExamples returns the ids of every example visible under draftID:
// every main example plus every example explicitly tagged with draftID
// (spec.md §8 scenario 6: draft_examples(concept, 'd1') returns the union
// of main's examples and d1's own). draftID "" is just the main set.
func (s *Store) DraftExamples(conceptID, draftID string) ([]Example, error) {
	query := `SELECT id, text, label, draft_id FROM examples WHERE concept_id = ? AND draft_id = ''`
	args := []any{conceptID}
	if draftID != "" {
		query += ` OR (concept_id = ? AND draft_id = ?)`
		args = append(args, conceptID, draftID)
	}
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Example
	for rows.Next() {
		var e Example
		var label int
		if err := rows.Scan(&e.ID, &e.Text, &label, &e.DraftID); err != nil {
			return nil, err
		}
		e.Label = label != 0
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, rows.Err()
}

// MergeDraft folds draftID's examples into main, deduplicating by text
// (an example whose text already exists in main is dropped rather than
// duplicated) and incrementing the concept's version by one. Merging is
// an explicit, one-shot operation: after it returns, draftID's examples
// no longer appear as a distinct draft, since their draft_id is cleared.
func (s *Store) MergeDraft(conceptID, draftID string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	mainTexts := map[string]bool{}
	rows, err := tx.Query(`SELECT text FROM examples WHERE concept_id = ? AND draft_id = ''`, conceptID)
	if err != nil {
		return err
	}
	for rows.Next() {
		var text string
		if err := rows.Scan(&text); err != nil {
			rows.Close()
			return err
		}
		mainTexts[text] = true
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	draftRows, err := tx.Query(`SELECT id, text FROM examples WHERE concept_id = ? AND draft_id = ?`, conceptID, draftID)
	if err != nil {
		return err
	}
	type idText struct {
		id   int64
		text string
	}
	var toMerge, toDrop []idText
	for draftRows.Next() {
		var it idText
		if err := draftRows.Scan(&it.id, &it.text); err != nil {
			draftRows.Close()
			return err
		}
		if mainTexts[it.text] {
			toDrop = append(toDrop, it)
		} else {
			toMerge = append(toMerge, it)
		}
	}
	draftRows.Close()
	if err := draftRows.Err(); err != nil {
		return err
	}

	stmt, err := tx.Prepare(`UPDATE examples SET draft_id = '' WHERE id = ?`)
	if err != nil {
		return err
	}
	for _, it := range toMerge {
		if _, err := stmt.Exec(it.id); err != nil {
			stmt.Close()
			return err
		}
	}
	stmt.Close()

	delStmt, err := tx.Prepare(`DELETE FROM examples WHERE id = ?`)
	if err != nil {
		return err
	}
	for _, it := range toDrop {
		if _, err := delStmt.Exec(it.id); err != nil {
			delStmt.Close()
			return err
		}
	}
	delStmt.Close()

	if _, err := tx.Exec(`UPDATE concepts SET version = version + 1 WHERE id = ?`, conceptID); err != nil {
		return err
	}
	return tx.Commit()
}

// ListDrafts returns every distinct non-main draft id currently holding
// at least one example for conceptID.
func (s *Store) ListDrafts(conceptID string) ([]string, error) {
	rows, err := s.db.Query(
		`SELECT DISTINCT draft_id FROM examples WHERE concept_id = ? AND draft_id != '' ORDER BY draft_id`, conceptID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
