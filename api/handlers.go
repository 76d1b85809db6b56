package api

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/modaio/stylist/agent"
	"github.com/modaio/stylist/core"
)

type searchResponse struct {
	Success           bool              `json:"success"`
	SessionID         string            `json:"session_id"`
	FinalResponse     string            `json:"final_response"`
	SearchResultsData []core.QueryGroup `json:"search_results_data"`
	Intent            core.Intent       `json:"intent,omitempty"`
	Degraded          string            `json:"degraded,omitempty"`
	Error             string            `json:"error,omitempty"`
}

type chatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id"`
}

type tryOnResponse struct {
	Success     bool   `json:"success"`
	ResultImage string `json:"result_image,omitempty"`
	Message     string `json:"message"`
	Error       string `json:"error,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "initializing"
	if s.ready.Load() {
		status = "ready"
	}
	s.respondWithJSON(w, http.StatusOK, map[string]any{
		"status":           status,
		"index_size":       s.index.Size(),
		"vocabulary_stats": s.vocab.Load().Stats(),
	})
}

// handleSearch accepts a multipart form: text_query, gender_filter,
// session_id, and an optional image file.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(s.config.MaxUploadBytes); err != nil {
		s.respondWithError(w, fmt.Errorf("%w: invalid multipart form: %v", core.ErrValidation, err))
		return
	}

	in := agent.TurnInput{
		SessionID:    r.FormValue("session_id"),
		Text:         r.FormValue("text_query"),
		GenderFilter: parseGender(r.FormValue("gender_filter")),
	}

	if file, _, err := r.FormFile("image"); err == nil {
		defer file.Close()
		image, readErr := readUpload(file, s.config.MaxUploadBytes)
		if readErr != nil {
			s.respondWithError(w, readErr)
			return
		}
		in.Image = image
	}

	out, err := s.orchestrator.HandleTurn(r.Context(), in)
	if err != nil {
		s.respondWithError(w, err)
		return
	}

	s.respondWithJSON(w, http.StatusOK, searchResponse{
		Success:           true,
		SessionID:         out.SessionID,
		FinalResponse:     out.Reply.FinalResponse,
		SearchResultsData: out.Reply.Groups,
		Intent:            out.Intent,
		Degraded:          out.Degraded,
	})
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondWithError(w, fmt.Errorf("%w: invalid request body", core.ErrValidation))
		return
	}
	if req.Message == "" {
		s.respondWithError(w, fmt.Errorf("%w: message is required", core.ErrValidation))
		return
	}

	out, err := s.orchestrator.HandleTurn(r.Context(), agent.TurnInput{
		SessionID: req.SessionID,
		Text:      req.Message,
	})
	if err != nil {
		s.respondWithError(w, err)
		return
	}

	s.respondWithJSON(w, http.StatusOK, searchResponse{
		Success:           true,
		SessionID:         out.SessionID,
		FinalResponse:     out.Reply.FinalResponse,
		SearchResultsData: out.Reply.Groups,
		Intent:            out.Intent,
	})
}

// handleTryOn accepts a multipart form: person_image file,
// garment_product_id, session_id, seed and randomize_seed.
func (s *Server) handleTryOn(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(s.config.MaxUploadBytes); err != nil {
		s.respondWithError(w, fmt.Errorf("%w: invalid multipart form: %v", core.ErrValidation, err))
		return
	}

	file, _, err := r.FormFile("person_image")
	if err != nil {
		s.respondWithError(w, fmt.Errorf("%w: person_image is required", core.ErrValidation))
		return
	}
	defer file.Close()

	personImage, err := readUpload(file, s.config.MaxUploadBytes)
	if err != nil {
		s.respondWithError(w, err)
		return
	}

	randomizeSeed := true
	if v := r.FormValue("randomize_seed"); v != "" {
		if parsed, parseErr := strconv.ParseBool(v); parseErr == nil {
			randomizeSeed = parsed
		}
	}

	rendered, err := s.orchestrator.TryOn(r.Context(), r.FormValue("session_id"), personImage, r.FormValue("garment_product_id"), randomizeSeed)
	if err != nil {
		s.respondWithError(w, err)
		return
	}

	s.respondWithJSON(w, http.StatusOK, tryOnResponse{
		Success:     true,
		ResultImage: base64.StdEncoding.EncodeToString(rendered),
		Message:     "try-on generated successfully",
	})
}

// handleTranscribe accepts a multipart form with an audio file.
func (s *Server) handleTranscribe(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(s.config.MaxUploadBytes); err != nil {
		s.respondWithError(w, fmt.Errorf("%w: invalid multipart form: %v", core.ErrValidation, err))
		return
	}

	file, header, err := r.FormFile("audio")
	if err != nil {
		s.respondWithError(w, fmt.Errorf("%w: audio is required", core.ErrValidation))
		return
	}
	defer file.Close()

	audio, err := readUpload(file, s.config.MaxUploadBytes)
	if err != nil {
		s.respondWithError(w, err)
		return
	}

	text, err := s.orchestrator.Transcribe(r.Context(), s.transcriber, audio, header.Filename)
	if err != nil {
		s.respondWithError(w, err)
		return
	}

	s.respondWithJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"text":    text,
	})
}

func (s *Server) handleProductDetail(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	product, ok := s.index.Get(id)
	if !ok {
		s.respondWithError(w, fmt.Errorf("%w: %s", core.ErrProductNotFound, id))
		return
	}
	// The embedding is catalog-internal; expose id and metadata only.
	s.respondWithJSON(w, http.StatusOK, map[string]any{
		"id":       product.ID,
		"metadata": product.Metadata,
	})
}

func parseGender(raw string) core.Gender {
	switch raw {
	case "male", "men", "man":
		return core.GenderMale
	case "female", "women", "woman":
		return core.GenderFemale
	default:
		return core.GenderBoth
	}
}

func readUpload(file multipart.File, limit int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(file, limit+1))
	if err != nil {
		return nil, fmt.Errorf("%w: reading upload: %v", core.ErrValidation, err)
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("%w: upload exceeds %d bytes", core.ErrValidation, limit)
	}
	return data, nil
}
