package gateway

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
)

// MaxUploadBytes is the largest document the backend accepts.
const MaxUploadBytes = 10 * 1024 * 1024

const pdfContentType = "application/pdf"

// UploadFile is a document selected for upload. Size may be -1 when unknown.
type UploadFile struct {
	Filename    string
	ContentType string
	Size        int64
	Content     io.Reader
}

// OpenUploadFile opens a document from disk, sniffing its content type.
// The caller closes the returned file once the upload is done.
func OpenUploadFile(path string) (*UploadFile, *os.File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	head := make([]byte, 512)
	n, _ := io.ReadFull(f, head)
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("failed to rewind %s: %w", path, err)
	}
	return &UploadFile{
		Filename:    filepath.Base(path),
		ContentType: http.DetectContentType(head[:n]),
		Size:        info.Size(),
		Content:     f,
	}, f, nil
}

func (u *UploadFile) isPDF() bool {
	ct := strings.ToLower(strings.TrimSpace(u.ContentType))
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	if ct == pdfContentType {
		return true
	}
	if ct == "" || ct == "application/octet-stream" {
		return strings.HasSuffix(strings.ToLower(u.Filename), ".pdf")
	}
	return false
}

// Validate runs the checks that must pass before an upload is attempted.
func (u *UploadFile) Validate() error {
	if u == nil || u.Content == nil {
		return &ValidationError{Op: OpUpload, Message: "Please select a PDF file first."}
	}
	if !u.isPDF() {
		return &ValidationError{Op: OpUpload, Message: "Please upload a PDF file only."}
	}
	if u.Size > MaxUploadBytes {
		return &ValidationError{Op: OpUpload, Message: "File size should be less than 10MB."}
	}
	return nil
}

func (c *Client) Upload(ctx context.Context, file *UploadFile) (*UploadResult, error) {
	if err := file.Validate(); err != nil {
		return nil, err
	}
	data, err := io.ReadAll(io.LimitReader(file.Content, MaxUploadBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", file.Filename, err)
	}
	if len(data) > MaxUploadBytes {
		return nil, &ValidationError{Op: OpUpload, Message: "File size should be less than 10MB."}
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, file.Filename))
	header.Set("Content-Type", pdfContentType)
	part, err := mw.CreatePart(header)
	if err != nil {
		return nil, fmt.Errorf("failed to build upload form: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return nil, fmt.Errorf("failed to build upload form: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("failed to build upload form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/api/upload", &body)
	if err != nil {
		return nil, fmt.Errorf("failed to build upload request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Accept", "application/json")

	var out UploadResult
	if err := c.do(OpUpload, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
