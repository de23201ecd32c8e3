package bom

import (
	"errors"
	"fmt"
	"strings"
)

// MaxHeaderScanRows is how many leading rows DetectHeader examines.
const MaxHeaderScanRows = 20

// minHeaderScore is the number of roles a header row must resolve.
const minHeaderScore = 2

// ErrHeaderNotFound is matched by every *HeaderNotFoundError.
var ErrHeaderNotFound = errors.New("header not found")

// HeaderNotFoundError reports that no row in the scan window resolved enough
// column roles to be used as a header.
type HeaderNotFoundError struct {
	Scanned   int // rows examined
	BestScore int // most roles resolved by any single row
}

func (e *HeaderNotFoundError) Error() string {
	return fmt.Sprintf("header not found: could not locate designator and part columns in the first %d rows (best row matched %d of 3 roles)",
		e.Scanned, e.BestScore)
}

// Is lets errors.Is match ErrHeaderNotFound.
func (e *HeaderNotFoundError) Is(target error) bool {
	return target == ErrHeaderNotFound
}

// Keywords lists, per role, the header substrings to look for in priority order.
type Keywords map[Role][]string

// DetectHeader locates the header row within the first MaxHeaderScanRows rows
// and returns the role to column mapping together with the header row index.
//
// Each row is scored by the number of roles it resolves; the first row with the
// highest score wins and scanning stops as soon as a row resolves all three.
// A best score below 2 yields a *HeaderNotFoundError.
func DetectHeader(table Table, keywords Keywords) (ColumnMap, int, error) {
	var (
		best      ColumnMap
		bestIdx   = -1
		bestScore = 0
		scanned   = 0
	)

	for i, row := range table {
		if i >= MaxHeaderScanRows {
			break
		}
		scanned++

		m := matchHeaderRow(row, keywords)
		if len(m) > bestScore {
			best, bestIdx, bestScore = m, i, len(m)
			if bestScore == len(roleOrder) {
				break
			}
		}
	}

	if bestScore < minHeaderScore {
		return nil, -1, &HeaderNotFoundError{Scanned: scanned, BestScore: bestScore}
	}
	return best, bestIdx, nil
}

// matchHeaderRow assigns roles to columns of a single candidate row.
func matchHeaderRow(row Row, keywords Keywords) ColumnMap {
	normalized := make([]string, len(row))
	for j, cell := range row {
		normalized[j] = normalizeHeader(cell)
	}

	m := make(ColumnMap, len(roleOrder))
	used := make(map[int]bool, len(roleOrder))

	for _, role := range roleOrder {
	keywordLoop:
		for _, kw := range keywords[role] {
			kw = normalizeHeader(kw)
			if kw == "" {
				continue
			}
			for j, cell := range normalized {
				if used[j] {
					continue
				}
				if strings.Contains(cell, kw) {
					m[role] = j
					used[j] = true
					break keywordLoop
				}
			}
		}
	}
	return m
}

// normalizeHeader lowercases s and removes all spaces.
func normalizeHeader(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), " ", "")
}
