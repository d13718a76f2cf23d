package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/katha-archive/katha/internal/config"
	"github.com/katha-archive/katha/internal/enrich"
	"github.com/katha-archive/katha/internal/ingest"
	"github.com/katha-archive/katha/internal/transcript"
	"github.com/katha-archive/katha/internal/validate"
	"github.com/katha-archive/katha/pkg/vectorstore"
)

// handleUpload ingests one multipart subtitle upload. The file travels in
// the "file" part; the remaining parts are metadata form fields.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(s.opts.MaxUploadBytes); err != nil {
		respondError(w, http.StatusBadRequest, "invalid multipart form: "+err.Error())
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, http.StatusBadRequest, `missing "file" part`)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, s.opts.MaxUploadBytes+1))
	if err != nil {
		respondError(w, http.StatusBadRequest, "reading upload: "+err.Error())
		return
	}
	if int64(len(data)) > s.opts.MaxUploadBytes {
		respondError(w, http.StatusRequestEntityTooLarge, "file exceeds upload limit")
		return
	}

	meta := ingest.Metadata{
		TranscriptName: r.FormValue("transcript_name"),
		Date:           r.FormValue("date"),
		Category:       r.FormValue("category"),
		Location:       r.FormValue("location"),
		Speaker:        r.FormValue("speaker"),
		EventName:      r.FormValue("event_name"),
		EventCode:      r.FormValue("event_code"),
		MiscTags:       splitTags(r.FormValue("misc_tags")),
	}

	res, err := s.ingestor.Run(r.Context(), header.Filename, data, meta)
	if err != nil {
		var ve *ingest.ValidationError
		var fe *transcript.FormatError
		switch {
		case errors.As(err, &ve):
			respond(w, http.StatusUnprocessableEntity, envelope{
				"success":    false,
				"error":      "coverage validation failed",
				"validation": validationBody(ve.Report, s.opts.Mode),
			})
		case errors.As(err, &fe):
			respondError(w, http.StatusBadRequest, err.Error())
		case strings.Contains(err.Error(), "unsupported file type"):
			respondError(w, http.StatusBadRequest, err.Error())
		default:
			respondError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	respondOK(w, envelope{
		"transcript_name": res.TranscriptName,
		"chunk_count":     res.ChunkCount,
		"used_fallback":   res.UsedFallback,
		"global_tags":     res.GlobalTags,
		"validation":      validationBody(res.Report, s.opts.Mode),
	})
}

// validationBody summarises a report; detailed mode includes the rendered
// report text.
func validationBody(rep *validate.Report, mode config.ValidationMode) envelope {
	body := envelope{
		"complete":              rep.CoverageComplete,
		"text_coverage_pct":     rep.TextCoveragePct,
		"timeline_coverage_pct": rep.TimelineCoveragePct,
		"errors":                rep.Errors,
		"warnings":              rep.Warnings,
	}
	if mode == config.ValidationDetailed {
		body["detailed_report"] = rep.DetailedReport
	}
	return body
}

// searchRequest is the POST /search body.
type searchRequest struct {
	Query  string `json:"query"`
	TopK   int    `json:"top_k"`
	Filter struct {
		TranscriptName string `json:"transcript_name"`
		Category       string `json:"category"`
		Location       string `json:"location"`
		Speaker        string `json:"speaker"`
		EventCode      string `json:"event_code"`
		Date           string `json:"date"`
		BioCategory    string `json:"bio_category"`
	} `json:"filter"`
}

type searchHit struct {
	ID             string              `json:"id"`
	TranscriptName string              `json:"transcript_name"`
	ChunkIndex     int                 `json:"chunk_index"`
	Content        string              `json:"content"`
	Distance       float64             `json:"distance"`
	Payload        vectorstore.Payload `json:"payload"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		respondError(w, http.StatusBadRequest, "query must not be empty")
		return
	}

	embedding, err := s.embedder.Embed(r.Context(), req.Query)
	if err != nil {
		s.metrics.RecordProviderError(r.Context(), s.embedder.ModelID(), "embeddings")
		respondError(w, http.StatusBadGateway, "embedding query: "+err.Error())
		return
	}

	results, err := s.store.Search(r.Context(), embedding, req.TopK, vectorstore.Filter{
		TranscriptName: req.Filter.TranscriptName,
		Category:       req.Filter.Category,
		Location:       req.Filter.Location,
		Speaker:        req.Filter.Speaker,
		EventCode:      req.Filter.EventCode,
		Date:           req.Filter.Date,
		BioCategory:    req.Filter.BioCategory,
	})
	if err != nil {
		respondError(w, http.StatusInternalServerError, "search: "+err.Error())
		return
	}

	hits := make([]searchHit, len(results))
	for i, res := range results {
		hits[i] = searchHit{
			ID:             res.ID.String(),
			TranscriptName: res.TranscriptName,
			ChunkIndex:     res.Index,
			Content:        res.Content,
			Distance:       res.Distance,
			Payload:        res.Payload,
		}
	}
	respondOK(w, envelope{"results": hits})
}

func (s *Server) handleListTranscripts(w http.ResponseWriter, r *http.Request) {
	infos, err := s.store.ListTranscripts(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "listing transcripts: "+err.Error())
		return
	}
	respondOK(w, envelope{"transcripts": infos})
}

type chunkItem struct {
	ID         string              `json:"id"`
	ChunkIndex int                 `json:"chunk_index"`
	Content    string              `json:"content"`
	Payload    vectorstore.Payload `json:"payload"`
}

func (s *Server) handleListChunks(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	limit := queryInt(r, "limit", 0)
	offset := queryInt(r, "offset", 0)

	records, err := s.store.ListByTranscript(r.Context(), name, limit, offset)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "listing chunks: "+err.Error())
		return
	}
	if len(records) == 0 && offset == 0 {
		respondError(w, http.StatusNotFound, "transcript not found: "+name)
		return
	}

	items := make([]chunkItem, len(records))
	for i, rec := range records {
		items[i] = chunkItem{
			ID:         rec.ID.String(),
			ChunkIndex: rec.Index,
			Content:    rec.Content,
			Payload:    rec.Payload,
		}
	}
	respondOK(w, envelope{"transcript_name": name, "chunks": items})
}

func (s *Server) handleDeleteTranscript(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	deleted, err := s.store.DeleteTranscript(r.Context(), name)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "deleting transcript: "+err.Error())
		return
	}
	if deleted == 0 {
		respondError(w, http.StatusNotFound, "transcript not found: "+name)
		return
	}
	respondOK(w, envelope{"transcript_name": name, "chunks_deleted": deleted})
}

// handleMetadata serves the recognised upload form vocabularies so clients
// can populate category, location, and speaker pickers.
func (s *Server) handleMetadata(w http.ResponseWriter, r *http.Request) {
	respondOK(w, envelope{
		"categories": enrich.SatsangCategories,
		"locations":  enrich.Locations,
		"speakers":   enrich.Speakers,
	})
}

// splitTags splits a comma-separated tag field, trimming whitespace and
// dropping empties.
func splitTags(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	tags := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			tags = append(tags, t)
		}
	}
	if len(tags) == 0 {
		return nil
	}
	return tags
}

func queryInt(r *http.Request, key string, fallback int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}
