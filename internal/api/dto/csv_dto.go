package dto

// ExportRequest optional body of POST /csv/export.
type ExportRequest struct {
	Status string `json:"status"`
}

// ExportResponse points at a written export file.
type ExportResponse struct {
	Message     string `json:"message"`
	FileName    string `json:"fileName"`
	DownloadURL string `json:"downloadUrl"`
	Count       int    `json:"count"`
}

// ImportErrorDetail is one rejected row.
type ImportErrorDetail struct {
	Row   int    `json:"row"`
	Error string `json:"error"`
}

// ImportResponse summarizes a synchronous import.
type ImportResponse struct {
	Message           string              `json:"message"`
	TotalProcessed    int                 `json:"totalProcessed"`
	SuccessfulUpdates int                 `json:"successfulUpdates"`
	Errors            int                 `json:"errors"`
	ErrorDetails      []ImportErrorDetail `json:"errorDetails"`
}

// JobAcceptedResponse acknowledges a queued job.
type JobAcceptedResponse struct {
	Message string `json:"message"`
	JobID   string `json:"jobId"`
}

// AutomationResponse summarizes an automation sweep.
type AutomationResponse struct {
	Message   string `json:"message"`
	Processed int    `json:"processed"`
	Updated   int    `json:"updated"`
	Failed    int    `json:"failed"`
}
