package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"github.com/coders-clan/cv-rag-agent/internal/agent"
	"github.com/coders-clan/cv-rag-agent/internal/clients/anthropic"
	"github.com/coders-clan/cv-rag-agent/internal/clients/pinecone"
	"github.com/coders-clan/cv-rag-agent/internal/clients/redis"
	"github.com/coders-clan/cv-rag-agent/internal/clients/voyage"
	"github.com/coders-clan/cv-rag-agent/internal/db"
	"github.com/coders-clan/cv-rag-agent/internal/handlers"
	"github.com/coders-clan/cv-rag-agent/internal/logger"
	"github.com/coders-clan/cv-rag-agent/internal/repos"
	"github.com/coders-clan/cv-rag-agent/internal/retrieval"
	"github.com/coders-clan/cv-rag-agent/internal/server"
	"github.com/coders-clan/cv-rag-agent/internal/services"
	"github.com/coders-clan/cv-rag-agent/internal/sse"
	"github.com/coders-clan/cv-rag-agent/internal/utils"
)

func main() {
	_ = godotenv.Load()

	// Logger
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// Env
	log.Info("Loading environment variables from main...")
	pineconeIndex := utils.GetEnv("PINECONE_INDEX", "resumes", log)
	pineconeNamespace := utils.GetEnv("PINECONE_NAMESPACE", "", log)
	maxChunkChars := utils.GetEnvAsInt("MAX_CHUNK_CHARS", 1500, log)
	overlapChars := utils.GetEnvAsInt("CHUNK_OVERLAP_CHARS", 200, log)
	maxToolRounds := utils.GetEnvAsInt("MAX_TOOL_ROUNDS", 6, log)
	allowedOrigins := utils.GetEnv("ALLOWED_ORIGINS", "", log)

	// Postgres
	postgresService, err := db.NewPostgresService(log)
	if err != nil {
		log.Error("Postgres init failed", "error", err)
		os.Exit(1)
	}
	if err = postgresService.AutoMigrateAll(); err != nil {
		log.Error("Postgres auto migration failed", "error", err)
		os.Exit(1)
	}
	thePG := postgresService.DB()

	// Repos
	log.Info("Setting up repos from main...")
	resumeRepo := repos.NewResumeRepo(thePG, log)
	chunkRepo := repos.NewResumeChunkRepo(thePG, log)

	// Clients
	log.Info("Setting up clients from main...")
	voyageClient, err := voyage.NewClient(log)
	if err != nil {
		log.Error("Could not init VoyageClient", "error", err)
		os.Exit(1)
	}
	anthropicClient, err := anthropic.NewClient(log)
	if err != nil {
		log.Error("Could not init AnthropicClient", "error", err)
		os.Exit(1)
	}
	pineconeClient, err := pinecone.New(log, pinecone.Config{})
	if err != nil {
		log.Error("Could not init PineconeClient", "error", err)
		os.Exit(1)
	}
	sessionStore, err := redis.NewSessionStore(log)
	if err != nil {
		log.Error("Could not init SessionStore", "error", err)
		os.Exit(1)
	}
	defer sessionStore.Close()

	// Retrieval
	store, err := retrieval.NewStore(log, pineconeClient, pineconeIndex, pineconeNamespace)
	if err != nil {
		log.Error("Could not init vector store", "error", err)
		os.Exit(1)
	}
	retriever, err := retrieval.NewRetriever(log, voyageClient, store)
	if err != nil {
		log.Error("Could not init retriever", "error", err)
		os.Exit(1)
	}

	// Agent
	registry, err := agent.NewRegistry(log, retriever, resumeRepo, chunkRepo)
	if err != nil {
		log.Error("Could not init tool registry", "error", err)
		os.Exit(1)
	}
	loop, err := agent.NewLoop(log, anthropicClient, registry, agent.Config{MaxToolRounds: maxToolRounds})
	if err != nil {
		log.Error("Could not init agent loop", "error", err)
		os.Exit(1)
	}
	encoder, err := sse.NewEncoder(log)
	if err != nil {
		log.Error("Could not init SSE encoder", "error", err)
		os.Exit(1)
	}

	// Services
	log.Info("Setting up services from main...")
	resumeService := services.NewResumeService(thePG, log, resumeRepo, chunkRepo, voyageClient, store, services.ResumeConfig{
		MaxChunkChars: maxChunkChars,
		OverlapChars:  overlapChars,
	})
	searchService := services.NewSearchService(log, retriever)
	chatService := services.NewChatService(log, loop, sessionStore)

	// Handlers
	log.Info("Setting up handlers from main...")
	resumeHandler := handlers.NewResumeHandler(log, resumeService)
	searchHandler := handlers.NewSearchHandler(log, searchService)
	chatHandler := handlers.NewChatHandler(log, chatService, encoder)

	// Router
	log.Info("Setting up router from main...")
	var origins []string
	if allowedOrigins != "" {
		for _, o := range strings.Split(allowedOrigins, ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
	}
	router := server.NewRouter(server.RouterConfig{
		AllowOrigins:  origins,
		ResumeHandler: resumeHandler,
		SearchHandler: searchHandler,
		ChatHandler:   chatHandler,
	})

	port := utils.GetEnv("PORT", "8080", log)
	log.Info("Server listening", "port", port)
	if err := router.Run(":" + port); err != nil {
		log.Error("Server failed", "error", err)
	}
}
