package cms

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"

	"github.com/ppiankov/concordia/internal/model"
)

const maxUploadResponseBytes = 1 << 20

// UploadError is a rejected upload. Errors holds the per-item strings the
// endpoint returned, when it returned any.
type UploadError struct {
	StatusCode int
	Message    string
	Errors     []string
}

func (e *UploadError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = "upload failed"
	}
	if len(e.Errors) > 0 {
		msg += ": " + strings.Join(e.Errors, "; ")
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s (status %d)", msg, e.StatusCode)
	}
	return msg
}

type uploadResponse struct {
	Success *bool             `json:"success"`
	Message string            `json:"message"`
	Error   string            `json:"error"`
	Errors  []json.RawMessage `json:"errors"`
}

// Upload streams one file to the upload endpoint as multipart form data with
// the record id alongside it. Uploads are never retried.
func (c *Client) Upload(ctx context.Context, recordID string, file model.CandidateFile) error {
	endpoint := c.UploadURL()

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx, endpoint); err != nil {
			return fmt.Errorf("rate limit: %w", err)
		}
	}

	f, err := os.Open(file.Path)
	if err != nil {
		return fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = f.Close() }()

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		pw.CloseWithError(c.writeForm(mw, recordID, file, f))
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, pr)
	if err != nil {
		_ = pr.Close()
		return fmt.Errorf("create request: %w", err)
	}
	c.decorate(req)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		_ = pr.CloseWithError(err)
		return fmt.Errorf("upload: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxUploadResponseBytes))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if err := parseUploadResponse(resp.StatusCode, body); err != nil {
		return err
	}

	c.logger.Debug("upload accepted", "file", file.OriginalName, "record", recordID)
	return nil
}

func (c *Client) writeForm(mw *multipart.Writer, recordID string, file model.CandidateFile, r io.Reader) error {
	if err := mw.WriteField(c.target.IDField, recordID); err != nil {
		return err
	}

	contentType := mime.TypeByExtension(strings.ToLower(filepath.Ext(file.OriginalName)))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, c.target.FileField, file.OriginalName))
	h.Set("Content-Type", contentType)

	part, err := mw.CreatePart(h)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, r); err != nil {
		return fmt.Errorf("stream file: %w", err)
	}
	return mw.Close()
}

// parseUploadResponse turns a non-2xx status or {success:false} into an
// *UploadError. Bodies that are not JSON only matter on failure.
func parseUploadResponse(status int, body []byte) error {
	var parsed uploadResponse
	jsonErr := json.Unmarshal(body, &parsed)

	ok := status >= 200 && status < 300
	if ok && (jsonErr != nil || parsed.Success == nil || *parsed.Success) {
		return nil
	}

	uerr := &UploadError{StatusCode: status}
	if jsonErr != nil {
		uerr.Message = strings.TrimSpace(string(body))
		if len(uerr.Message) > 200 {
			uerr.Message = uerr.Message[:200]
		}
		return uerr
	}

	uerr.Message = parsed.Message
	if uerr.Message == "" {
		uerr.Message = parsed.Error
	}
	for _, raw := range parsed.Errors {
		if s := errorText(raw); s != "" {
			uerr.Errors = append(uerr.Errors, s)
		}
	}
	return uerr
}

// errorText reads a string error or an object with a message/error field
func errorText(raw json.RawMessage) string {
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}
	var obj struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if json.Unmarshal(raw, &obj) == nil {
		if obj.Message != "" {
			return obj.Message
		}
		return obj.Error
	}
	return strings.TrimSpace(string(raw))
}
