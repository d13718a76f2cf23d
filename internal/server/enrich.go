package server

import (
	"context"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/katha-archive/katha/internal/observe"
	"github.com/katha-archive/katha/pkg/vectorstore"
)

// enrichConcurrency bounds parallel LLM extraction calls per request.
const enrichConcurrency = 4

// handleExtractEntities runs entity extraction over every stored chunk of a
// transcript and merges the result into each chunk's payload.
func (s *Server) handleExtractEntities(w http.ResponseWriter, r *http.Request) {
	if s.entities == nil {
		respondError(w, http.StatusServiceUnavailable, "no LLM provider configured")
		return
	}
	s.enrichTranscript(w, r, func(ctx context.Context, text string) (map[string]any, error) {
		entities, err := s.entities.Extract(ctx, text)
		if err != nil {
			return nil, err
		}
		return map[string]any{"entities": entities}, nil
	})
}

// handleExtractBio runs biographical extraction over every stored chunk of a
// transcript. The patch rewrites the has_<category> flags so filtered search
// stays consistent with the new extractions.
func (s *Server) handleExtractBio(w http.ResponseWriter, r *http.Request) {
	if s.bio == nil {
		respondError(w, http.StatusServiceUnavailable, "no LLM provider configured")
		return
	}
	s.enrichTranscript(w, r, func(ctx context.Context, text string) (map[string]any, error) {
		extractions, err := s.bio.Extract(ctx, text)
		if err != nil {
			return nil, err
		}
		patch := map[string]any{"biographical_extractions": extractions}
		for _, cat := range vectorstore.BioCategories {
			patch["has_"+cat] = len(extractions[cat]) > 0
		}
		return patch, nil
	})
}

// enrichTranscript loads all chunks of the named transcript, runs extract on
// each chunk's content concurrently, and applies the returned payload patch.
func (s *Server) enrichTranscript(w http.ResponseWriter, r *http.Request, extract func(ctx context.Context, text string) (map[string]any, error)) {
	name := r.PathValue("name")

	// Page through the whole transcript; the store caps individual reads.
	const pageSize = 100
	var records []vectorstore.Record
	for offset := 0; ; offset += pageSize {
		page, err := s.store.ListByTranscript(r.Context(), name, pageSize, offset)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "listing chunks: "+err.Error())
			return
		}
		records = append(records, page...)
		if len(page) < pageSize {
			break
		}
	}
	if len(records) == 0 {
		respondError(w, http.StatusNotFound, "transcript not found: "+name)
		return
	}

	start := time.Now()
	g, ctx := errgroup.WithContext(r.Context())
	g.SetLimit(enrichConcurrency)

	for _, rec := range records {
		g.Go(func() error {
			patch, err := extract(ctx, rec.Content)
			if err != nil {
				return err
			}
			return s.store.UpdatePayload(ctx, rec.ID, patch)
		})
	}
	if err := g.Wait(); err != nil {
		respondError(w, http.StatusBadGateway, "extraction: "+err.Error())
		return
	}
	s.metrics.LLMDuration.Record(r.Context(), time.Since(start).Seconds())

	observe.Logger(r.Context()).Info("transcript enriched",
		"transcript", name, "chunks", len(records))
	respondOK(w, envelope{"transcript_name": name, "chunks_processed": len(records)})
}
