package sink

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// applicationDataPart names the multipart field carrying the JSON body.
const applicationDataPart = "applicationData"

type ack struct {
	ID              string `json:"id"`
	ReferenceNumber string `json:"referenceNumber"`
	Status          string `json:"status"`
}

type errorResponse struct {
	Message string `json:"message"`
}

// HandleCreateQuote stores one submission and answers 201 with its id and
// reference number.
func (s *Service) HandleCreateQuote(w http.ResponseWriter, r *http.Request) {
	defer s.metrics.observe("create", time.Now())

	form := mux.Vars(r)["form"]
	if !s.knownForm(form) {
		s.metrics.recordQuote(form, outcomeRejected)
		writeError(w, http.StatusNotFound, fmt.Sprintf("Unknown form %q.", form))
		return
	}

	body, attachments, err := s.decodeRequest(w, r)
	if err == nil {
		err = s.contract.ValidateRequest(body)
	}
	if err != nil {
		s.metrics.recordQuote(form, outcomeRejected)
		s.logger.Info("quote rejected", zap.String("form", form), zap.Error(err))
		writeError(w, http.StatusBadRequest, "Invalid quote request: "+err.Error())
		return
	}

	id := s.newID()
	quote := &Quote{
		ID:              id,
		Form:            form,
		ReferenceNumber: ReferenceNumber(id),
		Status:          StatusPending,
		Name:            contactValue(body, "name"),
		Email:           contactValue(body, "email"),
		Body:            body,
		Attachments:     attachments,
		CreatedAt:       s.now().UTC(),
	}
	if err := s.repo.Create(r.Context(), quote); err != nil {
		s.metrics.recordQuote(form, outcomeFailed)
		s.logger.Error("store quote", zap.String("form", form), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Could not store the quote request.")
		return
	}

	s.metrics.recordQuote(form, outcomeAccepted)
	s.logger.Info("quote stored",
		zap.String("form", form),
		zap.String("reference", quote.ReferenceNumber),
		zap.Int("attachments", len(attachments)),
	)
	writeJSON(w, http.StatusCreated, ack{
		ID:              quote.ID.String(),
		ReferenceNumber: quote.ReferenceNumber,
		Status:          quote.Status,
	})
}

// HandleListQuotes lists the stored quotes of a form, newest first.
func (s *Service) HandleListQuotes(w http.ResponseWriter, r *http.Request) {
	defer s.metrics.observe("list", time.Now())

	form := mux.Vars(r)["form"]
	if !s.knownForm(form) {
		writeError(w, http.StatusNotFound, fmt.Sprintf("Unknown form %q.", form))
		return
	}
	quotes, err := s.repo.List(r.Context(), form)
	if err != nil {
		s.logger.Error("list quotes", zap.String("form", form), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Could not list quote requests.")
		return
	}
	if quotes == nil {
		quotes = []Quote{}
	}
	writeJSON(w, http.StatusOK, quotes)
}

// HandleGetQuote returns one stored quote.
func (s *Service) HandleGetQuote(w http.ResponseWriter, r *http.Request) {
	defer s.metrics.observe("get", time.Now())

	vars := mux.Vars(r)
	form := vars["form"]
	id, err := uuid.Parse(vars["id"])
	if err != nil || !s.knownForm(form) {
		writeError(w, http.StatusNotFound, "Quote request not found.")
		return
	}
	quote, err := s.repo.Get(r.Context(), form, id)
	if errors.Is(err, ErrNotFound) {
		writeError(w, http.StatusNotFound, "Quote request not found.")
		return
	}
	if err != nil {
		s.logger.Error("get quote", zap.String("form", form), zap.Stringer("id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Could not load the quote request.")
		return
	}
	writeJSON(w, http.StatusOK, quote)
}

// decodeRequest reads a JSON body, or a multipart body whose
// applicationData part holds the JSON and whose file parts are attachments.
func (s *Service) decodeRequest(w http.ResponseWriter, r *http.Request) (map[string]any, []Attachment, error) {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		return nil, nil, errors.New("missing or malformed Content-Type")
	}

	switch mediaType {
	case "application/json":
		raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.maxUpload))
		if err != nil {
			return nil, nil, fmt.Errorf("read body: %w", err)
		}
		body, err := decodeObject(raw)
		return body, nil, err
	case "multipart/form-data":
		r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
		if err := r.ParseMultipartForm(s.maxUpload); err != nil {
			return nil, nil, fmt.Errorf("parse multipart body: %w", err)
		}
		defer func() { _ = r.MultipartForm.RemoveAll() }()

		values := r.MultipartForm.Value[applicationDataPart]
		if len(values) == 0 {
			return nil, nil, fmt.Errorf("multipart body has no %s part", applicationDataPart)
		}
		body, err := decodeObject([]byte(values[0]))
		if err != nil {
			return nil, nil, err
		}

		roles := make([]string, 0, len(r.MultipartForm.File))
		for role := range r.MultipartForm.File {
			roles = append(roles, role)
		}
		sort.Strings(roles)
		var attachments []Attachment
		for _, role := range roles {
			for _, header := range r.MultipartForm.File[role] {
				attachments = append(attachments, Attachment{Role: role, Name: header.Filename, Size: header.Size})
			}
		}
		return body, attachments, nil
	default:
		return nil, nil, fmt.Errorf("unsupported Content-Type %q", mediaType)
	}
}

func decodeObject(raw []byte) (map[string]any, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, errors.New("request body is empty")
	}
	var body map[string]any
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, errors.New("request body is not a JSON object")
	}
	return body, nil
}

// contactValue reads a promoted contact key, falling back to the nested
// pass-through values.
func contactValue(body map[string]any, key string) string {
	if v, ok := body[key].(string); ok {
		return strings.TrimSpace(v)
	}
	nested, _ := body["payload"].(map[string]any)
	if v, ok := nested[key].(string); ok {
		return strings.TrimSpace(v)
	}
	if contact, ok := nested["contact"].(map[string]any); ok {
		if v, ok := contact[key].(string); ok {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Message: message})
}
