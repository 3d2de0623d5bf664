package domain

import "time"

// DocumentType is the closed set of document kinds an application carries.
type DocumentType string

const (
	DocIdentityProof DocumentType = "identity_proof"
	DocAddressProof  DocumentType = "address_proof"
	DocIncomeProof   DocumentType = "income_proof"
	DocPhoto         DocumentType = "photo"
)

// RequiredDocumentTypes returns the four document types every application
// must provide, in canonical order. The fraud engine iterates this order so
// flag emission stays deterministic.
func RequiredDocumentTypes() []DocumentType {
	return []DocumentType{DocIdentityProof, DocAddressProof, DocIncomeProof, DocPhoto}
}

// ValidDocumentType reports whether t is one of the accepted kinds.
func ValidDocumentType(t DocumentType) bool {
	switch t {
	case DocIdentityProof, DocAddressProof, DocIncomeProof, DocPhoto:
		return true
	}
	return false
}

// DocumentRecord is one uploaded file's metadata. Text is populated
// synchronously at upload time and immutable afterwards; a nil/empty text
// means extraction failed or produced nothing.
type DocumentRecord struct {
	ID            string       `json:"id"`
	ApplicationID string       `json:"applicationId"`
	Type          DocumentType `json:"documentType"`
	FileName      string       `json:"fileName"`
	FilePath      string       `json:"filePath"`
	ExtractedText string       `json:"extractedText,omitempty"`
	UploadedAt    time.Time    `json:"uploadedAt"`
}
