package gateway

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/kaptinlin/jsonschema"

	"github.com/SereneyePro/rrweb-uploader/artifact"
	"github.com/SereneyePro/rrweb-uploader/core"
)

// Full-DOM snapshots can run to several megabytes; cap bodies well above
// that so a runaway client cannot exhaust the process.
const maxBodyBytes = 32 << 20

type startRequest struct {
	SessionID string         `json:"sessionId"`
	Meta      map[string]any `json:"meta"`
}

type startResponse struct {
	OK        bool   `json:"ok"`
	SessionID string `json:"sessionId"`
	Token     string `json:"token"`
}

type chunkRequest struct {
	SessionID string            `json:"sessionId"`
	Events    []json.RawMessage `json:"events"`
}

type finishRequest struct {
	SessionID string         `json:"sessionId"`
	Meta      map[string]any `json:"meta"`
}

type mergeRequest struct {
	IDs []string `json:"ids"`
}

// beaconRequest is the raw text body of the best-effort path: events for
// chunk-beacon, meta for finish-beacon, token always.
type beaconRequest struct {
	SessionID string            `json:"sessionId"`
	Token     string            `json:"token"`
	Events    []json.RawMessage `json:"events"`
	Meta      map[string]any    `json:"meta"`
}

type ackResponse struct {
	OK       bool `json:"ok"`
	Accepted int  `json:"accepted"`
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	jsonResponse(w, http.StatusOK, map[string]any{
		"status":       "ok",
		"liveSessions": s.collector.LiveSessions(),
	})
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if !s.decodeValidated(w, r, startSchema, &req) {
		return
	}
	sess, err := s.collector.Start(req.SessionID, req.Meta)
	if err != nil {
		s.writeError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, startResponse{OK: true, SessionID: sess.ID, Token: sess.Token})
}

func (s *Server) handleChunk(w http.ResponseWriter, r *http.Request) {
	var req chunkRequest
	if !s.decodeValidated(w, r, chunkSchema, &req) {
		return
	}
	accepted, err := s.collector.Append(req.SessionID, req.Events)
	if err != nil {
		s.writeError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, ackResponse{OK: true, Accepted: accepted})
}

func (s *Server) handleFinish(w http.ResponseWriter, r *http.Request) {
	var req finishRequest
	if !s.decodeValidated(w, r, finishSchema, &req) {
		return
	}
	res, err := s.collector.Finish(req.SessionID, req.Meta)
	if err != nil {
		s.writeError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, res)
}

func (s *Server) handleChunkBeacon(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeBeacon(w, r)
	if !ok {
		return
	}
	accepted, err := s.collector.AppendBeacon(req.SessionID, req.Token, req.Events)
	if err != nil {
		s.writeError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, ackResponse{OK: true, Accepted: accepted})
}

func (s *Server) handleFinishBeacon(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeBeacon(w, r)
	if !ok {
		return
	}
	res, err := s.collector.FinishBeacon(req.SessionID, req.Token, req.Meta)
	if err != nil {
		s.writeError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, res)
}

func (s *Server) handleMerge(w http.ResponseWriter, r *http.Request) {
	var req mergeRequest
	if !s.decodeValidated(w, r, mergeSchema, &req) {
		return
	}
	res, err := s.collector.MergeRecordings(req.IDs)
	if err != nil {
		s.writeError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, res)
}

func (s *Server) handleRecordings(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonError(w, http.StatusMethodNotAllowed, "GET only")
		return
	}
	infos, err := s.collector.Recordings()
	if err != nil {
		s.writeError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, map[string]any{"recordings": infos})
}

func (s *Server) handleRecording(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/recordings/")
	if id == "" || strings.Contains(id, "/") {
		jsonError(w, http.StatusBadRequest, "recording id required")
		return
	}

	switch r.Method {
	case http.MethodGet:
		data, err := s.collector.Recording(id)
		if err != nil {
			s.writeError(w, err)
			return
		}
		// artifacts are opaque bytes, served exactly as published
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write(data); err != nil {
			s.logger.Warn("error writing recording %s: %v", id, err)
		}
	case http.MethodDelete:
		if err := s.collector.DeleteRecording(id); err != nil {
			s.writeError(w, err)
			return
		}
		jsonResponse(w, http.StatusOK, map[string]bool{"ok": true})
	default:
		jsonError(w, http.StatusMethodNotAllowed, "GET or DELETE only")
	}
}

// decodeValidated reads a header-path body, checks it against the route's
// schema, and unmarshals it into out. It writes the error response itself
// and reports whether the handler should proceed.
func (s *Server) decodeValidated(w http.ResponseWriter, r *http.Request, schema *jsonschema.Schema, out any) bool {
	if r.Method != http.MethodPost {
		jsonError(w, http.StatusMethodNotAllowed, "POST only")
		return false
	}
	body, err := readBody(w, r)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "unreadable body")
		return false
	}
	if !json.Valid(body) {
		jsonError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	if err := validateBody(schema, body); err != nil {
		s.writeError(w, err)
		return false
	}
	if err := json.Unmarshal(body, out); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

// decodeBeacon reads a best-effort body leniently: the transport cannot
// promise a content type, only that the bytes are intended as JSON.
func (s *Server) decodeBeacon(w http.ResponseWriter, r *http.Request) (beaconRequest, bool) {
	var req beaconRequest
	if r.Method != http.MethodPost {
		jsonError(w, http.StatusMethodNotAllowed, "POST only")
		return req, false
	}
	body, err := readBody(w, r)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "unreadable body")
		return req, false
	}
	if err := json.Unmarshal(body, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "unparseable beacon body")
		return req, false
	}
	return req, true
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	defer r.Body.Close()
	return io.ReadAll(r.Body)
}

// writeError maps taxonomy errors onto their statuses. Anything
// unclassified is a 500.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, core.ErrBadRequest):
		status = http.StatusBadRequest
	case errors.Is(err, core.ErrUnauthorized):
		status = http.StatusUnauthorized
	case errors.Is(err, core.ErrUnknownSession), errors.Is(err, artifact.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, core.ErrStorageUnavailable):
		status = http.StatusBadGateway
	}
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed status=%d: %v", status, err)
	} else {
		s.logger.Debug("request rejected status=%d: %v", status, err)
	}
	jsonError(w, status, err.Error())
}

func jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func jsonError(w http.ResponseWriter, status int, message string) {
	jsonResponse(w, status, map[string]string{"error": message})
}
