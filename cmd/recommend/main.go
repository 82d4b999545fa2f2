package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/kirillkom/steam-game-recommender/internal/bootstrap"
	"github.com/kirillkom/steam-game-recommender/internal/config"
	"github.com/kirillkom/steam-game-recommender/internal/core/domain"
	"github.com/kirillkom/steam-game-recommender/internal/infrastructure/export/xlsx"
	"github.com/kirillkom/steam-game-recommender/internal/observability/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	fs := flag.NewFlagSet("recommend", flag.ExitOnError)
	maxResults := fs.Int("n", cfg.MaxOutputResults, "maximum number of recommendations")
	jsonPath := fs.String("o", cfg.OutputFile, "write the full result as JSON to this file (empty disables)")
	xlsxPath := fs.String("xlsx", "", "also write the result as an XLSX workbook")
	remote := fs.Bool("remote", false, "dispatch the run to NATS workers instead of running locally")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "usage: recommend [flags] <request text>\n")
		fs.PrintDefaults()
	}
	_ = fs.Parse(os.Args[1:])

	query := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if query == "" {
		fs.Usage()
		os.Exit(2)
	}

	// Logs go to stderr so stdout stays readable.
	logger := logging.NewLogger(os.Stderr, "recommend", cfg.LogLevel, "text")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *remote {
		cfg.RecommendDispatch = "nats"
	} else {
		cfg.RecommendDispatch = "local"
	}
	app, err := bootstrap.New(ctx, cfg, logger, bootstrap.Options{})
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	var result domain.RecommendationResult
	if app.Dispatcher != nil {
		result, err = app.Dispatcher.DispatchRecommend(ctx, domain.RecommendRequest{Query: query, MaxResults: maxResults})
		if err != nil {
			log.Fatalf("remote recommend error: %v", err)
		}
	} else {
		result = app.Pipeline.Recommend(ctx, query, *maxResults)
	}

	printResult(os.Stdout, result)

	if *jsonPath != "" {
		if err := writeJSONFile(*jsonPath, result); err != nil {
			log.Fatalf("write json: %v", err)
		}
		logger.Info("result_saved", "path", *jsonPath)
	}
	if *xlsxPath != "" {
		if err := writeXLSXFile(*xlsxPath, result); err != nil {
			log.Fatalf("write xlsx: %v", err)
		}
		logger.Info("result_saved", "path", *xlsxPath)
	}
}

func printResult(w io.Writer, result domain.RecommendationResult) {
	a := result.Analysis
	fmt.Fprintf(w, "Query: %s\n", result.Query)
	fmt.Fprintf(w, "Keywords: %s | Budget: %.0f-%.0f CNY | Tags: %s\n",
		strings.Join(a.Keywords, ", "), a.MinPrice, a.MaxPrice, strings.Join(a.Tags, ", "))
	fmt.Fprintf(w, "Found %d candidates, evaluated %d\n\n", result.TotalFound, result.TotalEvaluated)

	if len(result.Recommendations) == 0 {
		msg := result.Message
		if msg == "" {
			msg = "No recommendations."
		}
		fmt.Fprintln(w, msg)
		return
	}

	for i, rec := range result.Recommendations {
		fmt.Fprintf(w, "%d. %s  [%d/100]\n", i+1, rec.Name, rec.Score)
		price := fmt.Sprintf("%.2f CNY", rec.Price)
		if rec.DiscountPercent > 0 {
			price += fmt.Sprintf(" (-%d%%, was %.2f)", rec.DiscountPercent, rec.OriginalPrice)
		}
		fmt.Fprintf(w, "   Price: %s\n", price)
		if len(rec.Tags) > 0 {
			fmt.Fprintf(w, "   Tags: %s\n", strings.Join(rec.Tags, ", "))
		}
		fmt.Fprintf(w, "   Why: %s\n", rec.Reason)
		for _, h := range rec.Highlights {
			fmt.Fprintf(w, "   + %s\n", h)
		}
		fmt.Fprintf(w, "   %s\n\n", rec.URL)
	}
}

func writeJSONFile(path string, result domain.RecommendationResult) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, f.Close())
	}()
	enc := json.NewEncoder(f)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

func writeXLSXFile(path string, result domain.RecommendationResult) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, f.Close())
	}()
	return xlsx.WriteRecommendations(f, result)
}
