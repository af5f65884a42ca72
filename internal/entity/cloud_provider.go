package entity

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Cloud provider tags of the built-in table.
const (
	ProviderAWS     ProviderTag = "AWS"
	ProviderAzure   ProviderTag = "Azure"
	ProviderGCP     ProviderTag = "GCP"
	ProviderAlibaba ProviderTag = "Alibaba Cloud"
	ProviderOracle  ProviderTag = "Oracle Cloud"
)

// CloudProvider is one row of the provider table. Keywords are tagged
// wherever they appear. Contextual terms are too generic on their own and
// only count inside a sentence that also mentions one of their required
// words.
type CloudProvider struct {
	Name       ProviderTag   `yaml:"name"`
	Keywords   []string      `yaml:"keywords"`
	Contextual []ContextRule `yaml:"contextual"`
}

// ContextRule tags a provider when a sentence mentions one of Terms and one
// of Requires.
type ContextRule struct {
	Terms    []string `yaml:"terms"`
	Requires []string `yaml:"requires"`
}

// CloudProviderTable maps providers to their keyword variants. Order is
// significant: it is the order tags are reported in.
type CloudProviderTable struct {
	Providers []CloudProvider `yaml:"providers"`
}

// Tags returns the provider names in table order.
func (t CloudProviderTable) Tags() []ProviderTag {
	tags := make([]ProviderTag, 0, len(t.Providers))
	for _, p := range t.Providers {
		tags = append(tags, p.Name)
	}
	return tags
}

// DefaultCloudProviderTable returns the built-in keyword table.
func DefaultCloudProviderTable() CloudProviderTable {
	return CloudProviderTable{Providers: []CloudProvider{
		{
			Name: ProviderAWS,
			Keywords: []string{
				"aws", "amazon web services", "ec2", "dynamodb", "cloudformation", "cloudwatch",
				"sagemaker", "cloudfront", "redshift", "fargate",
			},
			Contextual: []ContextRule{
				{Terms: []string{"s3", "lambda"}, Requires: []string{"amazon", "serverless", "bucket", "buckets"}},
				{Terms: []string{"eks"}, Requires: []string{"amazon", "kubernetes"}},
			},
		},
		{
			Name:     ProviderAzure,
			Keywords: []string{"azure", "microsoft azure", "cosmos db", "azure devops"},
			Contextual: []ContextRule{
				{Terms: []string{"aks"}, Requires: []string{"microsoft", "kubernetes"}},
			},
		},
		{
			Name:     ProviderGCP,
			Keywords: []string{"gcp", "google cloud", "google cloud platform"},
			Contextual: []ContextRule{
				{
					Terms: []string{
						"bigquery", "dataflow", "dataproc", "cloud spanner", "cloud storage",
						"compute engine", "cloud run", "cloud functions",
					},
					Requires: []string{"google"},
				},
				{Terms: []string{"gke"}, Requires: []string{"google", "kubernetes"}},
			},
		},
		{
			Name:     ProviderAlibaba,
			Keywords: []string{"alibaba cloud", "aliyun", "alicloud"},
			Contextual: []ContextRule{
				{Terms: []string{"maxcompute", "polardb", "tablestore"}, Requires: []string{"alibaba"}},
			},
		},
		{
			Name:     ProviderOracle,
			Keywords: []string{"oracle cloud", "oracle cloud infrastructure"},
			Contextual: []ContextRule{
				{Terms: []string{"oci"}, Requires: []string{"oracle"}},
			},
		},
	}}
}

// LoadCloudProviderTable reads a YAML provider table. An empty path returns
// the built-in table.
func LoadCloudProviderTable(path string) (CloudProviderTable, error) {
	if path == "" {
		return DefaultCloudProviderTable(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return CloudProviderTable{}, fmt.Errorf("read provider table: %w", err)
	}
	return ParseCloudProviderTable(data)
}

// ParseCloudProviderTable decodes and validates a YAML provider table.
func ParseCloudProviderTable(data []byte) (CloudProviderTable, error) {
	var t CloudProviderTable
	if err := yaml.Unmarshal(data, &t); err != nil {
		return CloudProviderTable{}, fmt.Errorf("parse provider table: %w", err)
	}
	if len(t.Providers) == 0 {
		return CloudProviderTable{}, fmt.Errorf("provider table has no providers")
	}
	names := make(map[ProviderTag]struct{}, len(t.Providers))
	for i, p := range t.Providers {
		if strings.TrimSpace(string(p.Name)) == "" {
			return CloudProviderTable{}, fmt.Errorf("provider #%d has no name", i+1)
		}
		if _, dup := names[p.Name]; dup {
			return CloudProviderTable{}, fmt.Errorf("provider %q listed twice", p.Name)
		}
		names[p.Name] = struct{}{}
		if len(p.Keywords) == 0 && len(p.Contextual) == 0 {
			return CloudProviderTable{}, fmt.Errorf("provider %q has no keywords", p.Name)
		}
		for j, r := range p.Contextual {
			if len(r.Terms) == 0 || len(r.Requires) == 0 {
				return CloudProviderTable{}, fmt.Errorf("provider %q: context rule #%d needs terms and requires", p.Name, j+1)
			}
		}
	}
	return t, nil
}
