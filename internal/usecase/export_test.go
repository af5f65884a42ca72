package usecase

import (
	"bytes"
	"encoding/csv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/user/jobscraper-service/internal/entity"
)

func TestWriteCSV(t *testing.T) {
	records := []entity.JobRecord{
		{JobID: "1", Title: "Engineer, Cloud", Company: "Acme", Location: "Berlin, Germany", Country: "Germany",
			URL: "https://www.linkedin.com/jobs/view/1/", Description: "Line one\n\nLine \"two\"",
			Providers: []entity.ProviderTag{entity.ProviderAWS, entity.ProviderGCP}},
		{JobID: "2", Title: "SRE", Company: "Globex"},
	}
	providers := []entity.ProviderTag{entity.ProviderAWS, entity.ProviderAzure, entity.ProviderGCP}

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, records, providers))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"job_id", "title", "company", "location", "country", "url", "description",
		"AWS", "Azure", "GCP", "providers"}, rows[0])
	assert.Equal(t, []string{"1", "Engineer, Cloud", "Acme", "Berlin, Germany", "Germany",
		"https://www.linkedin.com/jobs/view/1/", "Line one\n\nLine \"two\"", "true", "false", "true", "AWS, GCP"}, rows[1])
	assert.Equal(t, []string{"2", "SRE", "Globex", "", "", "", "", "false", "false", "false", ""}, rows[2])
}
