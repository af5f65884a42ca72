package usecase

import (
	"encoding/csv"
	"io"
	"strconv"
	"strings"

	"github.com/user/jobscraper-service/internal/entity"
)

// WriteCSV writes records as a table with one boolean column per provider,
// followed by a comma joined providers column.
func WriteCSV(w io.Writer, records []entity.JobRecord, providers []entity.ProviderTag) error {
	cw := csv.NewWriter(w)

	header := []string{"job_id", "title", "company", "location", "country", "url", "description"}
	for _, p := range providers {
		header = append(header, string(p))
	}
	header = append(header, "providers")
	if err := cw.Write(header); err != nil {
		return err
	}

	for _, r := range records {
		row := []string{string(r.JobID), r.Title, r.Company, r.Location, r.Country, r.URL, r.Description}
		for _, p := range providers {
			row = append(row, strconv.FormatBool(r.HasProvider(p)))
		}
		tags := make([]string, 0, len(r.Providers))
		for _, p := range r.Providers {
			tags = append(tags, string(p))
		}
		row = append(row, strings.Join(tags, ", "))
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}
