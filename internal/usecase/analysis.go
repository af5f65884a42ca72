package usecase

import (
	"regexp"
	"sort"
	"strings"

	"github.com/user/jobscraper-service/internal/entity"
)

const (
	topGroups = 10
	topWords  = 100
)

var (
	skillKeywords = []string{
		"aws", "azure", "gcp", "alibaba", "python", "java", "javascript", "sql", "redshift",
		"bigquery", "snowflake", "spark", "hadoop", "docker", "kubernetes", "terraform", "datav",
		"databricks", "claude", "llama", "bedrock", "sagemaker", "gpt", "chatgpt", "openai",
		"deep learning", "vertex", "elasticsearch", "kibana", "prometheus", "grafana", "splunk",
		"tableau", "power bi", "looker", "maxcompute", "tablestore", "polardb", "dataworks",
		"data lake", "glue",
	}
	stopWords = map[string]bool{
		"the": true, "and": true, "for": true, "with": true, "you": true, "will": true,
		"your": true, "this": true, "that": true, "our": true, "from": true, "have": true,
		"are": true,
	}
	wordPattern   = regexp.MustCompile(`\b[a-z]{3,15}\b`)
	skillPatterns = compileSkills(skillKeywords)
)

// Count is one entry of a ranked frequency table.
type Count struct {
	Key   string `json:"key"`
	Count int    `json:"count"`
}

// Analysis summarises the records of a run.
type Analysis struct {
	TotalJobs          int                  `json:"total_jobs"`
	Providers          []entity.ProviderTag `json:"providers"`
	ProviderCounts     []Count              `json:"provider_counts"`
	JobCountByCompany  []Count              `json:"job_count_by_company"`
	JobCountByLocation []Count              `json:"job_count_by_location"`
	JobCountByCountry  []Count              `json:"job_count_by_country"`
	CommonSkills       []Count              `json:"common_skills"`
	WordFrequencies    []Count              `json:"word_frequencies"`
}

type skillPattern struct {
	skill string
	re    *regexp.Regexp
}

func compileSkills(skills []string) []skillPattern {
	out := make([]skillPattern, 0, len(skills))
	for _, s := range skills {
		out = append(out, skillPattern{skill: s, re: regexp.MustCompile(`\b` + regexp.QuoteMeta(s) + `\b`)})
	}
	return out
}

// Analyze computes provider, company, location, skill and word statistics.
// providers fixes the order and the set of provider_counts rows.
func Analyze(records []entity.JobRecord, providers []entity.ProviderTag) Analysis {
	a := Analysis{TotalJobs: len(records), Providers: providers}

	a.ProviderCounts = make([]Count, 0, len(providers))
	for _, p := range providers {
		n := 0
		for _, r := range records {
			if r.HasProvider(p) {
				n++
			}
		}
		a.ProviderCounts = append(a.ProviderCounts, Count{Key: string(p), Count: n})
	}

	companies := make(map[string]int)
	locations := make(map[string]int)
	countries := make(map[string]int)
	var text strings.Builder
	for _, r := range records {
		if r.Company != "" {
			companies[r.Company]++
		}
		if r.Location != "" {
			locations[r.Location]++
		}
		if r.Country != "" {
			countries[r.Country]++
		}
		text.WriteString(strings.ToLower(r.Description))
		text.WriteByte(' ')
	}
	a.JobCountByCompany = ranked(companies, topGroups)
	a.JobCountByLocation = ranked(locations, topGroups)
	a.JobCountByCountry = ranked(countries, topGroups)

	all := text.String()
	skills := make(map[string]int)
	for _, sp := range skillPatterns {
		if n := len(sp.re.FindAllStringIndex(all, -1)); n > 0 {
			skills[sp.skill] = n
		}
	}
	a.CommonSkills = ranked(skills, 0)

	words := make(map[string]int)
	for _, w := range wordPattern.FindAllString(all, -1) {
		if !stopWords[w] {
			words[w]++
		}
	}
	a.WordFrequencies = ranked(words, topWords)
	return a
}

// ranked sorts counts descending, ties by key, keeping at most limit rows
// (0 keeps all).
func ranked(m map[string]int, limit int) []Count {
	out := make([]Count, 0, len(m))
	for k, v := range m {
		out = append(out, Count{Key: k, Count: v})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Key < out[j].Key
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
