package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
)

// multipartMemory is how much of a multipart body is kept in memory before
// spilling to temporary files.
const multipartMemory = 8 << 20

// parseMultipart parses a bounded multipart body.
func parseMultipart(w http.ResponseWriter, r *http.Request, limit int64) error {
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return err
		}
		return fmt.Errorf("%w: %w", ErrBadRequest, err)
	}
	return nil
}

// readAudio returns the "audio" part and its MIME type.
func readAudio(r *http.Request) ([]byte, string, error) {
	f, hdr, err := r.FormFile("audio")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return nil, "", fmt.Errorf("%w: audio file is required", ErrBadRequest)
		}
		return nil, "", fmt.Errorf("%w: %w", ErrBadRequest, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, "", fmt.Errorf("read audio: %w", err)
	}
	mime := hdr.Header.Get("Content-Type")
	if mime == "" || mime == "application/octet-stream" {
		mime = mimeFromName(hdr.Filename)
	}
	return data, mime, nil
}

func mimeFromName(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".webm":
		return "audio/webm"
	case ".ogg":
		return "audio/ogg"
	case ".mp3":
		return "audio/mpeg"
	default:
		return "audio/wav"
	}
}

// form reads typed multipart fields, keeping the first parse error.
type form struct {
	r   *http.Request
	err error
}

func (f *form) str(key string) string {
	return strings.TrimSpace(f.r.FormValue(key))
}

func (f *form) fail(key, msg string) {
	if f.err == nil {
		f.err = fmt.Errorf("%w: %s %s", ErrBadRequest, key, msg)
	}
}

func (f *form) int(key string, required bool) int {
	v := f.str(key)
	if v == "" {
		if required {
			f.fail(key, "is required")
		}
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		f.fail(key, "must be an integer")
	}
	return n
}

func (f *form) float(key string) float64 {
	v := f.str(key)
	if v == "" {
		return 0
	}
	n, err := strconv.ParseFloat(v, 64)
	if err != nil {
		f.fail(key, "must be a number")
	}
	return n
}

func (f *form) bool(key string) bool {
	v := f.str(key)
	if v == "" {
		return false
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		f.fail(key, "must be true or false")
	}
	return b
}

// words decodes a JSON array of strings. An absent field is an empty list.
func (f *form) words(key string) []string {
	v := f.str(key)
	if v == "" {
		return []string{}
	}
	var out []string
	if err := json.Unmarshal([]byte(v), &out); err != nil {
		if f.err == nil {
			f.err = ErrInvalidJSON
		}
		return nil
	}
	if out == nil {
		out = []string{}
	}
	return out
}

// decodeJSON decodes a bounded JSON request body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: invalid JSON body: %w", ErrBadRequest, err)
	}
	return nil
}
