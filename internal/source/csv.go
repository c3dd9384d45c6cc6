package source

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"ticketsync/internal/services"
)

// DefaultIDColumn is the CSV header holding ticket ids.
const DefaultIDColumn = "Ticket ID"

// CSVLister reads ticket ids from one column of a CSV export.
type CSVLister struct {
	Path   string
	Column string
}

func (c CSVLister) ListTicketIDs(context.Context) ([]int64, error) {
	f, err := os.Open(c.Path)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "source", "read csv", c.Path, err)
	}
	defer f.Close()
	column := c.Column
	if column == "" {
		column = DefaultIDColumn
	}
	return ReadTicketIDs(f, column)
}

// ReadTicketIDs parses ids from the named column. Blank cells are skipped and
// duplicate ids keep their first position.
func ReadTicketIDs(r io.Reader, column string) ([]int64, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, services.Wrap(services.ErrValidation, "source", "read csv", "header", err)
	}
	idx := -1
	for i, name := range header {
		if strings.EqualFold(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")), column) {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, services.Wrap(services.ErrValidation, "source", "read csv",
			fmt.Sprintf("column %q not found", column), nil)
	}

	seen := map[int64]struct{}{}
	var ids []int64
	for line := 2; ; line++ {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, services.Wrap(services.ErrValidation, "source", "read csv", fmt.Sprintf("line %d", line), err)
		}
		if idx >= len(row) {
			continue
		}
		cell := strings.TrimSpace(row[idx])
		if cell == "" {
			continue
		}
		id, err := strconv.ParseInt(cell, 10, 64)
		if err != nil || id <= 0 {
			return nil, services.Wrap(services.ErrValidation, "source", "read csv",
				fmt.Sprintf("line %d: invalid ticket id %q", line, cell), nil)
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids, nil
}
