package cmd

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kamir/flume-mbox-source/filter"
	"github.com/kamir/flume-mbox-source/mbox"
	"github.com/kamir/flume-mbox-source/model"
	"github.com/kamir/flume-mbox-source/stats"
)

var (
	reportDir     string
	topN          int
	includeHeader []string
	includeBody   []string
	excludeHeader []string
	excludeBody   []string
)

var fieldsCmd = &cobra.Command{
	Use:   "fields [mbox file]...",
	Short: "Analyse mbox files and show field value statistics",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println("Analyzing mbox files:", strings.Join(args, ", "))

		f, err := filter.New(filter.Options{
			IncludeHeader: includeHeader,
			IncludeBody:   includeBody,
			ExcludeHeader: excludeHeader,
			ExcludeBody:   excludeBody,
		})
		if err != nil {
			return fmt.Errorf("create filter: %w", err)
		}

		counter := make(map[string]map[string]int)
		fieldsToTrack := []string{model.FieldSender, "From", "To", "Subject", "Delivered-To"}
		for _, name := range fieldsToTrack {
			counter[name] = make(map[string]int)
		}

		recordCount := 0
		skippedCount := 0
		printStats := func() {
			// ANSI escape code to clear screen and move cursor to top-left
			fmt.Print("\033[H\033[2J")
			total := recordCount + skippedCount
			var filterPercent float64
			if total > 0 {
				filterPercent = float64(skippedCount) / float64(total) * 100
			}
			fmt.Printf("Processed %d records (skipped %d by filters, %.2f%%)...\n\n", recordCount, skippedCount, filterPercent)

			printFilterStats(f.GetStats())

			for _, name := range fieldsToTrack {
				fmt.Printf("Top %d %s:\n", topN, name)
				stats.PrettyPrintTop(counter[name], topN)
				fmt.Println()
			}
		}

		logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
		for _, path := range args {
			if err := analyzeFile(path, logger, func(rec *model.Record) {
				if !f.Allows(rec) {
					skippedCount++
					return
				}

				recordCount++
				for _, name := range fieldsToTrack {
					if value, ok := rec.Get(name); ok {
						value = strings.TrimSpace(value)
						if value != "" {
							counter[name][value]++
						}
					}
				}

				if recordCount%250 == 0 {
					printStats()
				}
			}); err != nil {
				logger.Error("error analyzing mbox file", "path", path, "err", err)
			}
		}

		printStats()

		if err := saveCSVReports(counter, fieldsToTrack, reportDir, 1000); err != nil {
			return fmt.Errorf("error saving CSV reports: %w", err)
		}

		fmt.Printf("\nReports saved to directory: %s\n", reportDir)

		return nil
	},
}

func init() {
	fieldsCmd.Flags().StringVarP(&reportDir, "output", "o", ".", "Output directory for CSV reports")
	fieldsCmd.Flags().IntVarP(&topN, "top", "t", 10, "Number of top items to display in statistics")
	fieldsCmd.Flags().StringArrayVar(&includeHeader, "include-header", nil, "Regex allow-list applied to record header fields (mutually exclusive with exclude flags)")
	fieldsCmd.Flags().StringArrayVar(&includeBody, "include-body", nil, "Regex allow-list applied to record bodies (mutually exclusive with exclude flags)")
	fieldsCmd.Flags().StringArrayVar(&excludeHeader, "exclude-header", nil, "Regex block-list applied to record header fields (mutually exclusive with include flags)")
	fieldsCmd.Flags().StringArrayVar(&excludeBody, "exclude-body", nil, "Regex block-list applied to record bodies (mutually exclusive with include flags)")
	rootCmd.AddCommand(fieldsCmd)
}

// analyzeFile runs the native parser over one file, invoking fn per record.
func analyzeFile(path string, logger *slog.Logger, fn func(*model.Record)) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open mbox: %w", err)
	}
	defer file.Close()

	it := mbox.NewIterator(mbox.NewLineSource(file), logger)
	for {
		rec, err := it.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		fn(rec)
	}
}

func printFilterStats(fs filter.Stats) {
	sections := []struct {
		title    string
		patterns []string
	}{
		{"Include Header Filters:", fs.IncludeHeaderPatterns},
		{"Include Body Filters:", fs.IncludeBodyPatterns},
		{"Exclude Header Filters:", fs.ExcludeHeaderPatterns},
		{"Exclude Body Filters:", fs.ExcludeBodyPatterns},
	}

	printed := false
	for _, section := range sections {
		if len(section.patterns) == 0 {
			continue
		}
		printed = true
		fmt.Println(section.title)
		printFilterHits(section.patterns, fs.Hits)
		fmt.Println()
	}

	if printed {
		fmt.Println("---")
		fmt.Println()
	}
}

func printFilterHits(patterns []string, hits map[string]int) {
	type pair struct {
		Pattern string
		Count   int
	}
	var pairs []pair
	for _, pattern := range patterns {
		pairs = append(pairs, pair{pattern, hits[pattern]})
	}

	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].Count != pairs[j].Count {
			return pairs[i].Count > pairs[j].Count
		}
		return pairs[i].Pattern < pairs[j].Pattern
	})

	for _, p := range pairs {
		fmt.Printf("  %s: %d hits\n", p.Pattern, p.Count)
	}
}

func saveCSVReports(counter map[string]map[string]int, names []string, dir string, limit int) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	for _, name := range names {
		counts := counter[name]

		filename := fmt.Sprintf("report_%s.csv", normalizeFieldName(name))
		filePath := filepath.Join(dir, filename)

		file, err := os.Create(filePath)
		if err != nil {
			return err
		}

		writer := csv.NewWriter(file)

		if err := writer.Write([]string{"Value", "Count"}); err != nil {
			file.Close()
			return err
		}

		type pair struct {
			Key   string
			Value int
		}
		var pairs []pair
		for k, v := range counts {
			pairs = append(pairs, pair{k, v})
		}
		sort.Slice(pairs, func(i, j int) bool {
			return pairs[i].Value > pairs[j].Value
		})

		for i := 0; i < limit && i < len(pairs); i++ {
			record := []string{
				pairs[i].Key,
				strconv.Itoa(pairs[i].Value),
			}
			if err := writer.Write(record); err != nil {
				file.Close()
				return err
			}
		}

		writer.Flush()
		file.Close()

		if err := writer.Error(); err != nil {
			return err
		}
	}

	return nil
}

func normalizeFieldName(name string) string {
	name = strings.ToLower(name)
	name = strings.ReplaceAll(name, "-", "_")
	name = strings.ReplaceAll(name, " ", "_")
	return name
}
