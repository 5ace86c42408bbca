// Package eras groups a user's records into eras: clusters of records
// released close together that share tags.
package eras

import (
	"fmt"
	"log/slog"
	"slices"
	"sort"

	"github.com/muesli/clusters"
	"github.com/muesli/kmeans"

	"github.com/justestif/go-record-collection/internal/models"
)

// Config holds era clustering parameters.
type Config struct {
	NumClusters    int     // Number of clusters to create (default: 3)
	MinClusterSize int     // Minimum records per era (smaller clusters become outliers)
	MaxTags        int     // Maximum tags to use in vectors (default: 50)
	YearWeight     float64 // Scale of the release year axis relative to one tag (default: 2)
}

// DefaultConfig returns the recommended default configuration.
func DefaultConfig() Config {
	return Config{
		NumClusters:    3,
		MinClusterSize: 2,
		MaxTags:        50,
		YearWeight:     2,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.NumClusters <= 0 {
		c.NumClusters = d.NumClusters
	}
	if c.MinClusterSize <= 0 {
		c.MinClusterSize = 1
	}
	if c.MaxTags <= 0 {
		c.MaxTags = d.MaxTags
	}
	if c.YearWeight <= 0 {
		c.YearWeight = d.YearWeight
	}
	return c
}

// Era is a group of records. Name reads like "Jazz: 1959–1965".
type Era struct {
	Name      string          `json:"name"`
	TopTags   []string        `json:"top_tags"`
	StartYear int             `json:"start_year"`
	EndYear   int             `json:"end_year"`
	Records   []models.Record `json:"records"`
}

// Result is the outcome of Detect. Every input record is in exactly one era
// or in Outliers.
type Result struct {
	Eras     []Era           `json:"eras"`
	Outliers []models.Record `json:"outliers"`
	Total    int             `json:"total"`
}

// recordObservation wraps a Record to implement clusters.Observation.
type recordObservation struct {
	record *models.Record
	coords clusters.Coordinates
}

func (o recordObservation) Coordinates() clusters.Coordinates {
	return o.coords
}

func (o recordObservation) Distance(point clusters.Coordinates) float64 {
	return o.coords.Distance(point)
}

// Detect groups records by release year and tag similarity using k-means.
// Records without a release date are outliers.
func Detect(records []models.Record, cfg Config) Result {
	cfg = cfg.withDefaults()
	res := Result{Eras: []Era{}, Outliers: []models.Record{}, Total: len(records)}

	var dated []*models.Record
	for i := range records {
		if records[i].ReleaseDate.IsZero() {
			res.Outliers = append(res.Outliers, records[i])
			continue
		}
		dated = append(dated, &records[i])
	}
	if len(dated) == 0 {
		return res
	}

	k := min(cfg.NumClusters, len(dated))
	vocab := buildTagVocabulary(dated, cfg.MaxTags)
	minYear, maxYear := yearRange(dated)

	var obs clusters.Observations
	for _, r := range dated {
		obs = append(obs, recordObservation{
			record: r,
			coords: buildVector(r, vocab, minYear, maxYear, cfg.YearWeight),
		})
	}

	result, err := kmeans.New().Partition(obs, k)
	if err != nil {
		slog.Warn("k-means clustering failed", "error", err, "records", len(dated))
		for _, r := range dated {
			res.Outliers = append(res.Outliers, *r)
		}
		return res
	}

	for _, cluster := range result {
		var recs []models.Record
		for _, o := range cluster.Observations {
			if ro, ok := o.(recordObservation); ok {
				recs = append(recs, *ro.record)
			}
		}
		if len(recs) == 0 {
			continue
		}

		if len(recs) < cfg.MinClusterSize {
			res.Outliers = append(res.Outliers, recs...)
			continue
		}

		slices.SortFunc(recs, func(a, b models.Record) int {
			return a.ReleaseDate.Compare(b.ReleaseDate.Time)
		})

		var centroid clusters.Coordinates
		if len(cluster.Center) > 1 {
			centroid = cluster.Center[1:]
		}
		topTags := extractTopTags(centroid, vocab, 3)

		start := recs[0].ReleaseDate.Year()
		end := recs[len(recs)-1].ReleaseDate.Year()
		res.Eras = append(res.Eras, Era{
			Name:      eraName(topTags, start, end),
			TopTags:   topTags,
			StartYear: start,
			EndYear:   end,
			Records:   recs,
		})
	}

	slices.SortFunc(res.Eras, func(a, b Era) int {
		return a.StartYear - b.StartYear
	})
	return res
}

// vocabEntry is a tag in the clustering vocabulary.
type vocabEntry struct {
	slug  string
	name  string
	count int
}

// buildTagVocabulary collects all tags and returns the most common, keyed
// by slug and displayed by the first name seen.
func buildTagVocabulary(records []*models.Record, maxTags int) []vocabEntry {
	index := make(map[string]int)
	var entries []vocabEntry
	for _, r := range records {
		for _, tag := range r.Tags {
			i, ok := index[tag.Slug]
			if !ok {
				i = len(entries)
				index[tag.Slug] = i
				entries = append(entries, vocabEntry{slug: tag.Slug, name: tag.Name})
			}
			entries[i].count++
		}
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].count > entries[j].count
	})
	return entries[:min(maxTags, len(entries))]
}

func yearRange(records []*models.Record) (lo, hi int) {
	lo, hi = records[0].ReleaseDate.Year(), records[0].ReleaseDate.Year()
	for _, r := range records[1:] {
		y := r.ReleaseDate.Year()
		lo, hi = min(lo, y), max(hi, y)
	}
	return lo, hi
}

// buildVector places a record on a normalized year axis followed by one
// 0/1 axis per vocabulary tag.
func buildVector(r *models.Record, vocab []vocabEntry, minYear, maxYear int, yearWeight float64) clusters.Coordinates {
	vector := make(clusters.Coordinates, 1+len(vocab))
	if span := maxYear - minYear; span > 0 {
		vector[0] = yearWeight * float64(r.ReleaseDate.Year()-minYear) / float64(span)
	}

	has := make(map[string]bool, len(r.Tags))
	for _, t := range r.Tags {
		has[t.Slug] = true
	}
	for i, v := range vocab {
		if has[v.slug] {
			vector[1+i] = 1
		}
	}
	return vector
}

// extractTopTags returns the names of up to n tags with the highest
// centroid weight.
func extractTopTags(centroid clusters.Coordinates, vocab []vocabEntry, n int) []string {
	type tagWeight struct {
		name   string
		weight float64
	}
	weights := make([]tagWeight, 0, len(vocab))
	for i, v := range vocab {
		if i < len(centroid) && centroid[i] > 0 {
			weights = append(weights, tagWeight{name: v.name, weight: centroid[i]})
		}
	}

	sort.SliceStable(weights, func(i, j int) bool {
		return weights[i].weight > weights[j].weight
	})

	top := make([]string, 0, n)
	for _, w := range weights[:min(n, len(weights))] {
		top = append(top, w.name)
	}
	return top
}

// eraName names an era after its dominant tag and year range.
func eraName(topTags []string, start, end int) string {
	tag := "Mixed"
	if len(topTags) > 0 {
		tag = topTags[0]
	}
	if start == end {
		return fmt.Sprintf("%s: %d", tag, start)
	}
	return fmt.Sprintf("%s: %d–%d", tag, start, end)
}
