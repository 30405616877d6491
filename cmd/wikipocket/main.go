package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"wikipocket/internal/config"
	"wikipocket/internal/location"
	"wikipocket/internal/repo"
	web "wikipocket/internal/server"
	"wikipocket/internal/store"
	"wikipocket/internal/summary"
	"wikipocket/internal/wiki"
	"wikipocket/internal/worker"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var logger *zap.Logger

var rootCmd = &cobra.Command{
	Use:   "wikipocket",
	Short: "wikipocket - an offline-first Wikipedia explorer",
}

// buildDeps wires the repository the same way for every subcommand.
// Everything is explicitly constructed here; nothing is a package global.
func buildDeps(cfg config.Config) (*repo.Repository, *store.HybridStore, error) {
	st, err := store.NewHybridStore(cfg.RedisAddr, cfg.BadgerPath)
	if err != nil {
		return nil, nil, err
	}

	wikiClient := wiki.NewHTTPClient(cfg.WikipediaBaseURL, cfg.SearchLimit, cfg.GeoRadiusMeters, cfg.GeoLimit)
	summarizer := summary.NewOpenAISummarizer(cfg.OpenAIKey, cfg.OpenAIBaseURL)

	return repo.New(st, wikiClient, summarizer, logger, cfg.MaxArticleAge), st, nil
}

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the API server and snapshot worker",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := config.Get()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		// Setup Signal Handling (Ctrl+C)
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

		// Setup Manual 'q' input handling
		go func() {
			scanner := bufio.NewScanner(os.Stdin)
			for scanner.Scan() {
				if scanner.Text() == "q" {
					fmt.Println(" 'q' pressed. Stopping...")
					cancel()
					return
				}
			}
		}()

		go func() {
			<-sigChan
			logger.Info("Shutting down...")
			cancel()
		}()

		repository, st, err := buildDeps(cfg)
		if err != nil {
			logger.Fatal("Failed to init store", zap.Error(err))
		}
		defer st.Close()

		// Cold-start maintenance: evict stale non-favorites once
		repository.CleanupOldArticles(ctx)

		// Snapshot worker for favorited articles
		w := worker.NewWorker(st, logger, cfg.SnapshotTimeout)
		go w.Start(ctx)

		loc := location.NewStaticProvider(cfg.LocationLat, cfg.LocationLon, cfg.LocationEnabled)
		defer loc.Cleanup()

		srv := web.NewServer(repository, st, loc, logger, cfg.RecentLimit)
		go func() {
			if err := srv.Start(cfg.HTTPAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("Server failed", zap.Error(err))
				cancel()
			}
		}()

		logger.Info("Server running.")
		fmt.Println("Press 'q' + Enter or Ctrl+C to stop.")

		// Block until shutdown
		<-ctx.Done()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := srv.Stop(shutdownCtx); err != nil {
			logger.Error("Shutdown failed", zap.Error(err))
		}

		logger.Info("Goodbye!")
	},
}

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search articles, serving cached results when available",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		repository, st, err := buildDeps(config.Get())
		if err != nil {
			logger.Fatal("Failed to init store", zap.Error(err))
		}
		defer st.Close()

		articles := repository.SearchArticles(cmd.Context(), strings.Join(args, " "))
		if len(articles) == 0 {
			fmt.Println("No articles found.")
			return
		}

		for _, article := range articles {
			fmt.Printf("%8d  %s\n", article.PageID, article.Title)
		}
	},
}

var getCmd = &cobra.Command{
	Use:   "get [pageid]",
	Short: "Show one article, fetching it if it is not cached",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		pageID, err := strconv.Atoi(args[0])
		if err != nil {
			logger.Fatal("Invalid pageid", zap.String("arg", args[0]))
		}

		repository, st, err := buildDeps(config.Get())
		if err != nil {
			logger.Fatal("Failed to init store", zap.Error(err))
		}
		defer st.Close()

		article, found := repository.GetArticle(cmd.Context(), pageID)
		if !found {
			fmt.Println("Article not found.")
			return
		}

		fmt.Printf("%s (%d)\n%s\n\n%s\n", article.Title, article.PageID, article.FullURL, article.Extract)
		if article.AISummary != "" {
			fmt.Printf("\nAI summary: %s\n", article.AISummary)
		}
	},
}

var nearbyCmd = &cobra.Command{
	Use:   "nearby [lat] [lon]",
	Short: "List articles around a coordinate (or the configured location)",
	Args:  cobra.MaximumNArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		cfg := config.Get()

		var lat, lon float64
		if len(args) == 2 {
			var err error
			if lat, err = strconv.ParseFloat(args[0], 64); err != nil {
				logger.Fatal("Invalid latitude", zap.String("arg", args[0]))
			}
			if lon, err = strconv.ParseFloat(args[1], 64); err != nil {
				logger.Fatal("Invalid longitude", zap.String("arg", args[1]))
			}
		} else {
			loc := location.NewStaticProvider(cfg.LocationLat, cfg.LocationLon, cfg.LocationEnabled)
			defer loc.Cleanup()

			coords, found := loc.CurrentLocation(cmd.Context())
			if !found {
				fmt.Println("No location available. Pass lat and lon, or configure one.")
				return
			}
			lat, lon = coords.Lat, coords.Lon
		}

		repository, st, err := buildDeps(cfg)
		if err != nil {
			logger.Fatal("Failed to init store", zap.Error(err))
		}
		defer st.Close()

		articles := repository.GetNearbyArticles(cmd.Context(), lat, lon)
		if len(articles) == 0 {
			fmt.Println("No nearby articles found.")
			return
		}

		for _, article := range articles {
			fmt.Printf("%8d  %s\n", article.PageID, article.Title)
		}
	},
}

var favoriteCmd = &cobra.Command{
	Use:   "favorite [pageid] [on|off]",
	Short: "Mark or unmark an article as a favorite",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		pageID, err := strconv.Atoi(args[0])
		if err != nil {
			logger.Fatal("Invalid pageid", zap.String("arg", args[0]))
		}
		if args[1] != "on" && args[1] != "off" {
			logger.Fatal("Expected 'on' or 'off'", zap.String("arg", args[1]))
		}

		repository, st, err := buildDeps(config.Get())
		if err != nil {
			logger.Fatal("Failed to init store", zap.Error(err))
		}
		defer st.Close()

		if !repository.ToggleFavorite(cmd.Context(), pageID, args[1] == "on") {
			fmt.Println("Article not found.")
			return
		}

		logger.Info("Favorite updated", zap.Int("pageid", pageID), zap.String("state", args[1]))
	},
}

var summarizeCmd = &cobra.Command{
	Use:   "summarize [pageid]",
	Short: "Back-fill the AI summary for a cached article",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		pageID, err := strconv.Atoi(args[0])
		if err != nil {
			logger.Fatal("Invalid pageid", zap.String("arg", args[0]))
		}

		repository, st, err := buildDeps(config.Get())
		if err != nil {
			logger.Fatal("Failed to init store", zap.Error(err))
		}
		defer st.Close()

		if !repository.GenerateAISummary(cmd.Context(), pageID) {
			fmt.Println("Article not found.")
			return
		}

		if article, found := repository.GetArticle(cmd.Context(), pageID); found {
			fmt.Println(article.AISummary)
		}
	},
}

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Evict stale non-favorite articles from the cache",
	Run: func(cmd *cobra.Command, args []string) {
		repository, st, err := buildDeps(config.Get())
		if err != nil {
			logger.Fatal("Failed to init store", zap.Error(err))
		}
		defer st.Close()

		removed := repository.CleanupOldArticles(cmd.Context())
		logger.Info("Cleanup finished", zap.Int("removed", removed))
	},
}

func main() {
	var err error
	logger, err = zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	rootCmd.AddCommand(serverCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(nearbyCmd)
	rootCmd.AddCommand(favoriteCmd)
	rootCmd.AddCommand(summarizeCmd)
	rootCmd.AddCommand(cleanupCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
