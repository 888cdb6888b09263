package httpapi

import (
	"time"

	"github.com/dmitrijs2005/casevault/internal/server/models"
)

// Amounts leave the API in major units, matching what clients send in.
type paymentResponse struct {
	ID            string    `json:"id"`
	Amount        float64   `json:"amount"`
	Currency      string    `json:"currency"`
	Status        string    `json:"status"`
	Description   string    `json:"description"`
	InvoiceNumber string    `json:"invoiceNumber"`
	PaymentMethod string    `json:"paymentMethod,omitempty"`
	ReceiptURL    string    `json:"receiptUrl,omitempty"`
	RefundAmount  float64   `json:"refundAmount,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

func toPaymentResponse(p *models.Payment) paymentResponse {
	return paymentResponse{
		ID:            p.ID,
		Amount:        minorToMajor(p.Amount),
		Currency:      p.Currency,
		Status:        string(p.Status),
		Description:   p.Description,
		InvoiceNumber: p.InvoiceNumber,
		PaymentMethod: p.PaymentMethod,
		ReceiptURL:    p.ReceiptURL,
		RefundAmount:  minorToMajor(p.RefundAmount),
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}
}

type documentResponse struct {
	ID          string    `json:"id"`
	CaseID      string    `json:"caseId,omitempty"`
	FileName    string    `json:"fileName"`
	FileType    string    `json:"fileType"`
	FileSize    int64     `json:"fileSize"`
	Category    string    `json:"category"`
	Description string    `json:"description,omitempty"`
	Status      string    `json:"status"`
	UploadedAt  time.Time `json:"uploadedAt"`
}

func toDocumentResponse(d *models.Document) documentResponse {
	return documentResponse{
		ID:          d.ID,
		CaseID:      d.CaseID,
		FileName:    d.FileName,
		FileType:    d.FileType,
		FileSize:    d.FileSize,
		Category:    d.Category,
		Description: d.Description,
		Status:      d.Status,
		UploadedAt:  d.UploadedAt,
	}
}

type userResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Phone string `json:"phone,omitempty"`
	Role  string `json:"role"`
}

func toUserResponse(u *models.User) userResponse {
	return userResponse{ID: u.ID, Email: u.Email, Name: u.Name, Phone: u.Phone, Role: u.Role}
}

func minorToMajor(v int64) float64 {
	return float64(v) / 100
}
