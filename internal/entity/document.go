package entity

// PendingDocument is one source document ready for extraction.
type PendingDocument struct {
	Path     string `json:"path"`
	FileName string `json:"file_name"`
	TenantID string `json:"tenant_id"`
	Text     string `json:"text"`
	Pages    int    `json:"pages,omitempty"`
}
