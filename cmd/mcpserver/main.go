// Command mcpserver exposes the retrieval surface (RetrieveChunks, Ask) as
// MCP tools over stdio, for agent clients that speak the Model Context
// Protocol instead of calling the HTTP API directly.
package main

import (
	"context"
	"fmt"
	stdlog "log"
	"os"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog/log"

	"ragforge/internal/config"
	"ragforge/internal/observability"
	"ragforge/internal/persistence/databases"
	"ragforge/internal/rag/blobstore"
	"ragforge/internal/rag/modelhost"
	"ragforge/internal/rag/obs"
	"ragforge/internal/rag/service"
	"ragforge/internal/ragdomain"
	"ragforge/internal/version"
)

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("mcpserver")
	}
}

type retrieveChunksArgs struct {
	Query     string `json:"query" jsonschema:"the natural-language question to retrieve supporting chunks for"`
	TopKFinal int    `json:"top_k_final,omitempty" jsonschema:"number of chunks to return after reranking; defaults to the server's configured k_final"`
}

type askArgs struct {
	Query string `json:"query" jsonschema:"the natural-language question to answer"`
}

func run() error {
	cfg, err := config.LoadFromEnv(os.Getenv("RAGFORGE_CONFIG"), "")
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	observability.InitLogger(cfg.Log.Path, cfg.Log.Level)
	if cfg.Log.Path == "" {
		// The stdio transport below speaks JSON-RPC over stdout; logging there
		// too would corrupt the protocol stream, so fall back to stderr.
		log.Logger = log.Output(os.Stderr)
		stdlog.SetOutput(log.Logger)
	}

	baseCtx := context.Background()

	if cfg.Obs.OTLP != "" {
		shutdownOTel, err := observability.InitOTel(baseCtx, cfg.Obs)
		if err != nil {
			return fmt.Errorf("init otel: %w", err)
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = shutdownOTel(ctx)
		}()
		observability.EnableOTelLogging(cfg.Obs.ServiceName)
	}

	logger := &obs.JSONLogger{}

	mgr, err := databases.NewManager(baseCtx, cfg)
	if err != nil {
		return fmt.Errorf("init databases: %w", err)
	}
	defer mgr.Close()

	blobs, err := blobstore.New(baseCtx, cfg.Blob)
	if err != nil {
		return fmt.Errorf("init blob store: %w", err)
	}

	hosts, err := modelhost.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("init model hosts: %w", err)
	}

	svc := service.New(cfg, mgr, blobs, hosts, service.WithLogger(logger))
	defer svc.Close()

	server := mcp.NewServer(&mcp.Implementation{Name: "ragforge", Version: version.Version}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "retrieve_chunks",
		Description: "Retrieve the top supporting chunks for a query without generating an answer.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args retrieveChunksArgs) (*mcp.CallToolResult, any, error) {
		topK := args.TopKFinal
		if topK <= 0 {
			topK = cfg.Retrieval.KFinal
		}
		chunks, err := svc.RetrieveChunks(ctx, args.Query, topK)
		if err != nil {
			return nil, nil, err
		}
		return &mcp.CallToolResult{Content: []mcp.Content{&mcp.TextContent{Text: formatChunks(chunks)}}}, chunks, nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "ask",
		Description: "Answer a question by retrieving relevant chunks and generating a grounded response.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args askArgs) (*mcp.CallToolResult, any, error) {
		result, err := svc.Ask(ctx, args.Query)
		if err != nil {
			return nil, nil, err
		}
		return &mcp.CallToolResult{Content: []mcp.Content{&mcp.TextContent{Text: result.Answer}}}, result, nil
	})

	log.Info().Msg("mcpserver: serving tools over stdio")
	return server.Run(baseCtx, &mcp.StdioTransport{})
}

func formatChunks(chunks []ragdomain.SupportingChunk) string {
	var sb strings.Builder
	for i, c := range chunks {
		fmt.Fprintf(&sb, "[%d] doc=%d chunk=%d score=%.4f\n%s\n\n", i+1, c.SourceDocumentID, c.ChunkID, c.Score, c.Text)
	}
	return sb.String()
}
