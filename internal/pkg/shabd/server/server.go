// Package server exposes a trained tokenizer over HTTP for token
// inspection. It is a strictly read-only consumer: handlers call only
// Encode, Decode and the pre-tokenizer, never Train or Load.
package server

import (
	_ "embed"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"shabd/internal/pkg/shabd/tokenizer"
)

//go:embed index.html
var indexPage []byte

type Server struct {
	tok    tokenizer.Tokenizer
	logger zerolog.Logger
}

func New(tok tokenizer.Tokenizer, logger zerolog.Logger) *Server {
	return &Server{tok: tok, logger: logger}
}

// Router builds the gin engine with all routes registered.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/", s.indexHandler)
	r.GET("/healthz", s.healthHandler)
	r.GET("/api/stats", s.statsHandler)
	r.POST("/api/tokenize", s.tokenizeHandler)
	r.POST("/api/decode", s.decodeHandler)
	return r
}

// Run serves until the listener fails.
func (s *Server) Run(addr string) error {
	s.logger.Info().Str("addr", addr).Msg("Starting token inspection server")
	return s.Router().Run(addr)
}

func (s *Server) indexHandler(c *gin.Context) {
	c.Data(http.StatusOK, "text/html; charset=utf-8", indexPage)
}

func (s *Server) healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) statsHandler(c *gin.Context) {
	stats := gin.H{"vocab_size": s.tok.VocabSize()}
	if mc, ok := s.tok.(tokenizer.MergeCounter); ok {
		stats["merges"] = mc.MergeCount()
	}
	c.JSON(http.StatusOK, stats)
}

type tokenizeRequest struct {
	Text string `json:"text"`
}

type tokenPiece struct {
	ID   int    `json:"id"`
	Text string `json:"text"`
}

type chunkResult struct {
	Chunk  string       `json:"chunk"`
	Tokens []tokenPiece `json:"tokens"`
}

type tokenizeResponse struct {
	Chunks       []chunkResult `json:"chunks"`
	TokenCount   int           `json:"token_count"`
	UniqueTokens int           `json:"unique_tokens"`
}

func (s *Server) tokenizeHandler(c *gin.Context) {
	var req tokenizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ids := s.encodeWithRetry(req.Text)
	unique := make(map[int]struct{})
	for _, id := range ids {
		unique[id] = struct{}{}
	}

	resp := tokenizeResponse{
		Chunks:       []chunkResult{},
		TokenCount:   len(ids),
		UniqueTokens: len(unique),
	}
	for chunk := range tokenizer.Chunks(req.Text) {
		chunkIDs, err := s.tok.Encode(chunk)
		if err != nil {
			continue
		}
		pieces := make([]tokenPiece, len(chunkIDs))
		for i, id := range chunkIDs {
			pieces[i] = tokenPiece{ID: id, Text: s.tok.Decode([]int{id})}
		}
		resp.Chunks = append(resp.Chunks, chunkResult{Chunk: chunk, Tokens: pieces})
	}

	c.JSON(http.StatusOK, resp)
}

// encodeWithRetry falls back to encoding whitespace-separated pieces
// one by one when encoding the whole text fails, keeping whatever
// succeeds.
func (s *Server) encodeWithRetry(text string) []int {
	ids, err := s.tok.Encode(text)
	if err == nil {
		return ids
	}
	s.logger.Warn().Err(err).Msg("Encode failed, retrying per substring")

	var out []int
	for _, part := range strings.Fields(text) {
		partIDs, err := s.tok.Encode(part)
		if err != nil {
			continue
		}
		out = append(out, partIDs...)
	}
	return out
}

type decodeRequest struct {
	IDs []int `json:"ids"`
}

func (s *Server) decodeHandler(c *gin.Context) {
	var req decodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"text": s.tok.Decode(req.IDs)})
}
