package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"

	"github.com/joostvdm/kennisbot/config"
	"github.com/joostvdm/kennisbot/memory"
	"github.com/joostvdm/kennisbot/provider"
	"github.com/joostvdm/kennisbot/query"
	"github.com/joostvdm/kennisbot/telemetry"
	"github.com/joostvdm/kennisbot/vectorstore/pinecone"
)

func main() {
	cfgPath := flag.String("config", "", "path to config file")
	userID := flag.String("user", "terminal", "conversation id for memory")
	category := flag.String("category", "", "restrict answers to one document category")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx := context.Background()
	logger := log.New(os.Stderr, "[KENNISBOT] ", log.LstdFlags)

	llm, err := provider.NewProvider(provider.OpenAI, cfg.LLM)
	if err != nil {
		log.Fatalf("provider: %v", err)
	}

	index := pinecone.NewClient(cfg.Pinecone)
	retriever, err := query.NewRetriever(ctx, cfg, index, llm, nil)
	if err != nil {
		log.Fatalf("retriever: %v", err)
	}

	store := memory.NewFromConfig(ctx, cfg.Memory, nil)

	var metrics *telemetry.Metrics
	if cfg.Telemetry.Enabled {
		metrics = telemetry.NewMetrics()
		go func() {
			addr := fmt.Sprintf(":%d", cfg.Telemetry.MetricsPort)
			mux := http.NewServeMux()
			mux.Handle("/metrics", metrics.Handler())
			logger.Printf("metrics on %s/metrics", addr)
			if err := http.ListenAndServe(addr, mux); err != nil {
				logger.Printf("WARNING: metrics server stopped: %v", err)
			}
		}()
	}

	engine := query.NewEngine(cfg,
		retriever,
		query.NewRewriter(cfg, llm, nil),
		query.NewResponder(cfg, llm, nil),
		store,
		metrics,
		nil,
	)

	// One question per line on stdin, answer on stdout.
	scanner := bufio.NewScanner(os.Stdin)
	fmt.Println("Ask a question (ctrl-d to quit):")
	for scanner.Scan() {
		question := strings.TrimSpace(scanner.Text())
		if question == "" {
			continue
		}

		resp, err := engine.Query(ctx, question, *userID, query.QueryOptions{CategoryFilter: *category})
		if err != nil {
			fmt.Printf("invalid question: %v\n\n", err)
			continue
		}

		fmt.Printf("\n%s\n", resp.Answer)
		if resp.HasAnswer {
			fmt.Printf("[confidence: %s, sources: %s, %.2fs]\n", resp.Confidence,
				strings.Join(resp.SourceNames(), ", "), resp.ElapsedSeconds)
		}
		fmt.Println()
	}
}
