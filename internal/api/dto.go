package api

import (
	"github.com/toonslate/toonslate-backend/internal/jobstore"
	"github.com/toonslate/toonslate-backend/internal/service"
)

// Wire DTOs. The store keeps snake_case records; the wire is camelCase.

// UploadResponse mirrors an upload record plus its public URL.
type UploadResponse struct {
	UploadID    string `json:"uploadId"`
	ImageURL    string `json:"imageUrl"`
	Filename    string `json:"filename"`
	ContentType string `json:"contentType"`
	Size        int64  `json:"size"`
	CreatedAt   string `json:"createdAt"`
}

// TranslateRequest creates one translation job.
type TranslateRequest struct {
	UploadID       string `json:"uploadId" validate:"required"`
	SourceLanguage string `json:"sourceLanguage"`
	TargetLanguage string `json:"targetLanguage"`
}

// TranslateResponse is the polled job view.
type TranslateResponse struct {
	TranslateID    string `json:"translateId"`
	Status         string `json:"status"`
	UploadID       string `json:"uploadId"`
	SourceLanguage string `json:"sourceLanguage"`
	TargetLanguage string `json:"targetLanguage"`
	CreatedAt      string `json:"createdAt"`
	CompletedAt    string `json:"completedAt,omitempty"`
	OriginalURL    string `json:"originalUrl,omitempty"`
	ResultURL      string `json:"resultUrl,omitempty"`
	ErrorMessage   string `json:"errorMessage,omitempty"`
}

// BatchRequest fans out to one job per upload.
type BatchRequest struct {
	UploadIDs      []string `json:"uploadIds" validate:"required,min=1"`
	SourceLanguage string   `json:"sourceLanguage"`
	TargetLanguage string   `json:"targetLanguage"`
}

// BatchImageEntry is one child in the batch view.
type BatchImageEntry struct {
	OrderIndex   int    `json:"orderIndex"`
	UploadID     string `json:"uploadId"`
	TranslateID  string `json:"translateId"`
	Status       string `json:"status"`
	OriginalURL  string `json:"originalUrl,omitempty"`
	ResultURL    string `json:"resultUrl,omitempty"`
	ErrorMessage string `json:"errorMessage,omitempty"`
}

// BatchResponse carries the derived batch status.
type BatchResponse struct {
	BatchID        string            `json:"batchId"`
	Status         string            `json:"status"`
	Images         []BatchImageEntry `json:"images"`
	SourceLanguage string            `json:"sourceLanguage"`
	TargetLanguage string            `json:"targetLanguage"`
	CreatedAt      string            `json:"createdAt"`
}

// EraseRequest removes a brush-marked area from a finished translation.
type EraseRequest struct {
	TranslateID string `json:"translateId" validate:"required"`
	MaskImage   string `json:"maskImage" validate:"required"`
	SourceImage string `json:"sourceImage,omitempty"`
}

// EraseResponse carries the edited image inline.
type EraseResponse struct {
	ResultImage string `json:"resultImage"`
}

// errorDetail is the body of every error response.
type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorEnvelope struct {
	Detail errorDetail `json:"detail"`
}

func (s *Server) uploadResponse(rec jobstore.UploadRecord) UploadResponse {
	return UploadResponse{
		UploadID:    rec.UploadID,
		ImageURL:    s.svc.ImageURL(rec.Path),
		Filename:    rec.Filename,
		ContentType: rec.ContentType,
		Size:        rec.Size,
		CreatedAt:   rec.CreatedAt,
	}
}

func translateResponse(rec jobstore.TranslateRecord) TranslateResponse {
	return TranslateResponse{
		TranslateID:    rec.TranslateID,
		Status:         rec.Status,
		UploadID:       rec.UploadID,
		SourceLanguage: rec.SourceLanguage,
		TargetLanguage: rec.TargetLanguage,
		CreatedAt:      rec.CreatedAt,
		CompletedAt:    rec.CompletedAt,
		OriginalURL:    rec.OriginalURL,
		ResultURL:      rec.ResultURL,
		ErrorMessage:   rec.ErrorMessage,
	}
}

func batchResponse(view service.BatchView) BatchResponse {
	images := make([]BatchImageEntry, len(view.Images))
	for i, img := range view.Images {
		images[i] = BatchImageEntry{
			OrderIndex:   img.OrderIndex,
			UploadID:     img.UploadID,
			TranslateID:  img.TranslateID,
			Status:       img.Status,
			OriginalURL:  img.OriginalURL,
			ResultURL:    img.ResultURL,
			ErrorMessage: img.ErrorMessage,
		}
	}
	return BatchResponse{
		BatchID:        view.BatchID,
		Status:         view.Status,
		Images:         images,
		SourceLanguage: view.SourceLanguage,
		TargetLanguage: view.TargetLanguage,
		CreatedAt:      view.CreatedAt,
	}
}
