package api

import (
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Source images top out at 5 MB; the parse buffer gets a little headroom.
const maxUploadMemory = 6 << 20

// clientIP is the direct connection peer. Proxy headers are deliberately
// ignored: trusting X-Forwarded-For without a trusted-proxy list would let
// anyone spoof their way past the weekly quota.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return ""
	}
	return host
}

func (s *Server) handleCreateUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		s.writeErrorCode(w, http.StatusBadRequest, "INVALID_FILE", "multipart 요청을 해석할 수 없습니다")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		s.writeErrorCode(w, http.StatusBadRequest, "INVALID_FILE", "file 필드가 필요합니다")
		return
	}
	defer file.Close()

	rec, err := s.svc.Upload(r.Context(), file, header.Header.Get("Content-Type"), header.Filename)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, s.uploadResponse(rec))
}

func (s *Server) handleGetUpload(w http.ResponseWriter, r *http.Request) {
	rec, err := s.svc.GetUpload(r.Context(), chi.URLParam(r, "uploadID"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, s.uploadResponse(rec))
}

func (s *Server) handleCreateTranslate(w http.ResponseWriter, r *http.Request) {
	ip := clientIP(r)
	if ip == "" {
		s.writeErrorCode(w, http.StatusBadRequest, "UNKNOWN_CLIENT", "클라이언트 IP를 확인할 수 없습니다")
		return
	}

	var req TranslateRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	applyLanguageDefaults(&req.SourceLanguage, &req.TargetLanguage)

	rec, err := s.svc.CreateTranslate(r.Context(), ip, req.UploadID, req.SourceLanguage, req.TargetLanguage)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, translateResponse(rec))
}

func (s *Server) handleGetTranslate(w http.ResponseWriter, r *http.Request) {
	rec, err := s.svc.GetTranslate(r.Context(), chi.URLParam(r, "translateID"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, translateResponse(rec))
}

func (s *Server) handleCreateBatch(w http.ResponseWriter, r *http.Request) {
	ip := clientIP(r)
	if ip == "" {
		s.writeErrorCode(w, http.StatusBadRequest, "UNKNOWN_CLIENT", "클라이언트 IP를 확인할 수 없습니다")
		return
	}

	var req BatchRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	applyLanguageDefaults(&req.SourceLanguage, &req.TargetLanguage)

	view, err := s.svc.CreateBatch(r.Context(), ip, req.UploadIDs, req.SourceLanguage, req.TargetLanguage)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, batchResponse(view))
}

func (s *Server) handleGetBatch(w http.ResponseWriter, r *http.Request) {
	view, err := s.svc.GetBatch(r.Context(), chi.URLParam(r, "batchID"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, batchResponse(view))
}

func (s *Server) handleErase(w http.ResponseWriter, r *http.Request) {
	var req EraseRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	result, err := s.svc.Erase(r.Context(), req.TranslateID, req.MaskImage, req.SourceImage)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, EraseResponse{ResultImage: result})
}

func applyLanguageDefaults(source, target *string) {
	if *source == "" {
		*source = "ko"
	}
	if *target == "" {
		*target = "en"
	}
}
