package httpapi

import (
	"fmt"
	"io"
	"mime"
	"net/http"

	"github.com/dmitrijs2005/casevault/internal/common"
	"github.com/dmitrijs2005/casevault/internal/server/services"
	"github.com/gin-gonic/gin"
)

// multipartOverhead is allowed on top of the file size for form fields and
// boundaries.
const multipartOverhead = 1 << 20

func (s *Server) uploadDocument(c *gin.Context) {
	if s.maxUploadBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.maxUploadBytes+multipartOverhead)
	}

	fh, err := c.FormFile("file")
	if err != nil {
		s.fail(c, "bad upload", fmt.Errorf("%w: no file provided", common.ErrValidation))
		return
	}
	if s.maxUploadBytes > 0 && fh.Size > s.maxUploadBytes {
		s.fail(c, "bad upload", fmt.Errorf("%w: file exceeds %d bytes", common.ErrValidation, s.maxUploadBytes))
		return
	}

	f, err := fh.Open()
	if err != nil {
		s.fail(c, "upload open failed", err)
		return
	}
	defer f.Close()

	content, err := io.ReadAll(f)
	if err != nil {
		s.fail(c, "upload read failed", err)
		return
	}

	fileType := fh.Header.Get("Content-Type")
	if fileType == "" {
		fileType = "application/octet-stream"
	}

	doc, err := s.documents.Upload(c.Request.Context(), services.UploadRequest{
		OwnerID:     currentUser(c),
		CaseID:      c.PostForm("caseId"),
		FileName:    fh.Filename,
		FileType:    fileType,
		Category:    c.PostForm("category"),
		Description: c.PostForm("description"),
		Content:     content,
	})
	if err != nil {
		s.fail(c, "document upload failed", err)
		return
	}

	c.JSON(http.StatusCreated, toDocumentResponse(doc))
}

func (s *Server) listDocuments(c *gin.Context) {
	docs, err := s.documents.List(c.Request.Context(), currentUser(c))
	if err != nil {
		s.fail(c, "list documents failed", err)
		return
	}
	out := make([]documentResponse, 0, len(docs))
	for _, d := range docs {
		out = append(out, toDocumentResponse(d))
	}
	c.JSON(http.StatusOK, gin.H{"documents": out})
}

func (s *Server) documentContent(c *gin.Context) {
	doc, content, err := s.documents.Open(c.Request.Context(), currentUser(c), c.Param("id"))
	if err != nil {
		s.fail(c, "open document failed", err)
		return
	}
	contentType := doc.FileType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.Header("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": doc.FileName}))
	c.Data(http.StatusOK, contentType, content)
}

func (s *Server) documentURL(c *gin.Context) {
	url, err := s.documents.PresignedURL(c.Request.Context(), currentUser(c), c.Param("id"))
	if err != nil {
		s.fail(c, "presign document failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": url})
}
