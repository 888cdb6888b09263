package models

import "time"

// Document describes an uploaded client file. The content itself lives in
// object storage as an encrypted blob under StorageKey; ContentEncoding
// says how the plaintext is laid out inside that blob.
type Document struct {
	ID              string
	UserID          string
	CaseID          string
	FileName        string
	FileType        string
	FileSize        int64
	StorageKey      string
	FileURL         string
	Encrypted       bool
	ContentEncoding string
	Category        string
	Description     string
	Status          string
	UploadedAt      time.Time
}

const (
	DefaultDocumentCategory = "GENERAL"
	DocumentPending         = "PENDING"
)

const (
	// EncodingRaw blobs hold the file bytes.
	EncodingRaw = "raw"
	// EncodingBase64 blobs hold the base64 text of the file, as written by
	// the first generation of uploads.
	EncodingBase64 = "base64"
)
