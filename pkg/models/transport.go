package models

import "time"

// PlantRequest is the body of POST /api/plant.
type PlantRequest struct {
	Image         string `json:"image"`
	ExpectedLabel string `json:"expected_label,omitempty"`
}

// UploadResponse is returned after a server-mediated upload.
type UploadResponse struct {
	URL  string `json:"url"`
	Name string `json:"name"`
	Size int64  `json:"size"`
}

// PolicyResponse carries the signed form fields for a direct PostObject upload.
type PolicyResponse struct {
	UploadURL  string            `json:"upload_url"`
	Key        string            `json:"key"`
	Fields     map[string]string `json:"fields"`
	Expiration time.Time         `json:"expiration"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Type    string `json:"type,omitempty"`
	Message string `json:"message,omitempty"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Time    string `json:"time"`
	Storage string `json:"storage"`
}
