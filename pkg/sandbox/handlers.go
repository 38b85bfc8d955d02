package sandbox

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Ratio1/dropbox_sdk_go/internal/dbxapi"
	"github.com/Ratio1/dropbox_sdk_go/pkg/files"
)

const (
	defaultLongpollTimeout = 30
	maxLongpollTimeout     = 480
)

func (s *Server) handleListFolder(w http.ResponseWriter, r *http.Request) {
	var arg files.ListFolderArg
	if !decodeRPC(w, r, "files/list_folder", &arg) {
		return
	}
	version := s.store.Version()
	entries, err := s.store.List(arg.Path, arg.Recursive, arg.IncludeDeleted)
	if err != nil {
		s.writeLookupError(w, "files/list_folder", err, "path")
		return
	}
	size := s.pageSize
	if arg.Limit > 0 && (size <= 0 || int(arg.Limit) < size) {
		size = int(arg.Limit)
	}
	writeJSON(w, s.cursors.page(entries, size, version))
}

func (s *Server) handleListFolderContinue(w http.ResponseWriter, r *http.Request) {
	var arg files.ListFolderContinueArg
	if !decodeRPC(w, r, "files/list_folder/continue", &arg) {
		return
	}
	cur, ok := s.cursors.lookup(arg.Cursor)
	if !ok {
		writeRouteError(w, "reset/..", map[string]string{".tag": "reset"})
		return
	}
	writeJSON(w, s.cursors.page(cur.remaining, cur.size, cur.version))
}

func (s *Server) handleListFolderLongpoll(w http.ResponseWriter, r *http.Request) {
	var arg files.ListFolderLongpollArg
	if !decodeRPC(w, r, "files/list_folder/longpoll", &arg) {
		return
	}
	cur, ok := s.cursors.lookup(arg.Cursor)
	if !ok {
		writeRouteError(w, "reset/..", map[string]string{".tag": "reset"})
		return
	}
	timeout := arg.Timeout
	if timeout == 0 {
		timeout = defaultLongpollTimeout
	}
	timeout = min(timeout, maxLongpollTimeout)
	changed := s.store.WaitChange(r.Context(), cur.version, time.Duration(timeout)*time.Second)
	writeJSON(w, files.ListFolderLongpollResult{Changes: changed})
}

func (s *Server) handleGetMetadata(w http.ResponseWriter, r *http.Request) {
	var arg files.GetMetadataArg
	if !decodeRPC(w, r, "files/get_metadata", &arg) {
		return
	}
	meta, err := s.store.Stat(arg.Path, arg.IncludeDeleted)
	if err != nil {
		s.writeLookupError(w, "files/get_metadata", err, "path")
		return
	}
	writeJSON(w, meta)
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	var arg files.DownloadArg
	if !decodeHeaderArg(w, r, "files/download", &arg) {
		return
	}
	data, meta, err := s.store.Read(arg.Path)
	if err != nil {
		s.writeLookupError(w, "files/download", err, "path")
		return
	}
	if arg.Rev != "" && arg.Rev != meta.Rev {
		writeRouteError(w, "path/not_found/..", map[string]any{
			".tag": "path",
			"path": map[string]string{".tag": "not_found"},
		})
		return
	}
	start, end, partial, err := parseRange(r.Header.Get("Range"), len(data))
	if err != nil {
		w.Header().Set("Content-Range", fmt.Sprintf("bytes */%d", len(data)))
		http.Error(w, err.Error(), http.StatusRequestedRangeNotSatisfiable)
		return
	}
	result, err := json.Marshal(meta)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	body := data[start:end]

	h := w.Header()
	h.Set("Dropbox-API-Result", dbxapi.HeaderSafe(string(result)))
	h.Set("Content-Type", "application/octet-stream")
	h.Set("Content-Length", strconv.Itoa(len(body)))
	status := http.StatusOK
	if partial {
		h.Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, max(end-1, start), len(data)))
		status = http.StatusPartialContent
	}
	w.WriteHeader(status)

	if cut := s.failure.Cut; cut > 0 && int64(len(body)) > cut {
		n, _ := w.Write(body[:cut])
		s.metrics.addDownloadBytes(int64(n))
		s.metrics.injected("cut")
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
		s.logger.Debug("cutting download", "path", arg.Path, "offset", start, "sent", n)
		panic(http.ErrAbortHandler)
	}
	n, _ := w.Write(body)
	s.metrics.addDownloadBytes(int64(n))
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	var arg files.CommitInfo
	if !decodeHeaderArg(w, r, "files/upload", &arg) {
		return
	}
	if arg.Mode.Tag == "" {
		arg.Mode = files.WriteModeAdd
	}
	data, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	meta, err := s.store.Put(arg.Path, data, arg.Mode, arg.Autorename)
	if err != nil {
		var pathErr *PathError
		if !errors.As(err, &pathErr) {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeRouteError(w, "path/"+pathErr.WriteError().String()+"/..", map[string]any{
			".tag": "path",
			"path": map[string]any{"reason": pathErr.WriteError(), "upload_session_id": ""},
		})
		return
	}
	if arg.ClientModified != nil {
		meta.ClientModified = arg.ClientModified.UTC()
	}
	writeJSON(w, meta)
}

func (s *Server) handleCreateFolder(w http.ResponseWriter, r *http.Request) {
	var arg files.CreateFolderArg
	if !decodeRPC(w, r, "files/create_folder_v2", &arg) {
		return
	}
	meta, err := s.store.Mkdir(arg.Path, arg.Autorename)
	if err != nil {
		var pathErr *PathError
		if !errors.As(err, &pathErr) {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeRouteError(w, "path/"+pathErr.WriteError().String()+"/..", map[string]any{
			".tag": "path",
			"path": pathErr.WriteError(),
		})
		return
	}
	writeJSON(w, files.CreateFolderResult{Metadata: *meta})
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	var arg files.DeleteArg
	if !decodeRPC(w, r, "files/delete_v2", &arg) {
		return
	}
	meta, err := s.store.Delete(arg.Path)
	if err != nil {
		s.writeLookupError(w, "files/delete_v2", err, "path_lookup")
		return
	}
	writeJSON(w, map[string]any{"metadata": meta})
}

func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeTokenError(w, "invalid_request", err.Error())
		return
	}
	if grant := r.PostForm.Get("grant_type"); grant != "authorization_code" {
		writeTokenError(w, "unsupported_grant_type", fmt.Sprintf("grant_type %q is not supported", grant))
		return
	}
	if strings.TrimSpace(r.PostForm.Get("code")) == "" {
		writeTokenError(w, "invalid_request", "No auth code")
		return
	}
	if r.PostForm.Get("client_id") == "" {
		writeTokenError(w, "invalid_client", "No client_id")
		return
	}
	token := s.token
	if token == "" {
		token = "sandbox-" + uuid.NewString()
	}
	writeJSON(w, map[string]any{
		"access_token": token,
		"token_type":   "bearer",
		"expires_in":   14400,
		"uid":          "1",
		"account_id":   "dbid:sandbox",
	})
}

// writeLookupError answers a lookup failure as a 409 whose union variant is
// named tag, or as a 500 when err is not a path failure.
func (s *Server) writeLookupError(w http.ResponseWriter, route string, err error, tag string) {
	var pathErr *PathError
	if !errors.As(err, &pathErr) {
		s.logger.Error("route failed", "route", route, "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeRouteError(w, tag+"/"+pathErr.Tag+"/..", map[string]any{
		".tag": tag,
		tag:    pathErr.Lookup(),
	})
}

func writeRouteError(w http.ResponseWriter, summary string, payload any) {
	writeJSONStatus(w, http.StatusConflict, map[string]any{
		"error_summary": summary,
		"error":         payload,
	})
}

func writeTokenError(w http.ResponseWriter, code, description string) {
	writeJSONStatus(w, http.StatusBadRequest, map[string]string{
		"error":             code,
		"error_description": description,
	})
}

func writeJSON(w http.ResponseWriter, payload any) {
	writeJSONStatus(w, http.StatusOK, payload)
}

func writeJSONStatus(w http.ResponseWriter, status int, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(data)
}

func badInput(w http.ResponseWriter, route string, err error) {
	http.Error(w, fmt.Sprintf("Error in call to API function %q: %v", route, err), http.StatusBadRequest)
}

// decodeRPC reads a JSON argument from the request body. An empty body
// decodes as the zero value.
func decodeRPC(w http.ResponseWriter, r *http.Request, route string, out any) bool {
	if r.ContentLength != 0 && !strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		badInput(w, route, fmt.Errorf("bad Content-Type %q", r.Header.Get("Content-Type")))
		return false
	}
	data, err := io.ReadAll(r.Body)
	if err != nil {
		badInput(w, route, err)
		return false
	}
	if len(data) == 0 {
		return true
	}
	if err := json.Unmarshal(data, out); err != nil {
		badInput(w, route, err)
		return false
	}
	return true
}

func decodeHeaderArg(w http.ResponseWriter, r *http.Request, route string, out any) bool {
	raw := r.Header.Get("Dropbox-API-Arg")
	if raw == "" {
		badInput(w, route, errors.New("missing Dropbox-API-Arg header"))
		return false
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		badInput(w, route, err)
		return false
	}
	return true
}

// parseRange resolves a single "bytes=" range against size. The end offset is
// exclusive. partial is false when no range was requested.
func parseRange(header string, size int) (start, end int, partial bool, err error) {
	if header == "" {
		return 0, size, false, nil
	}
	rangeSet, ok := strings.CutPrefix(header, "bytes=")
	if !ok || strings.Contains(rangeSet, ",") {
		return 0, 0, false, fmt.Errorf("unsupported range %q", header)
	}
	first, last, ok := strings.Cut(rangeSet, "-")
	if !ok {
		return 0, 0, false, fmt.Errorf("malformed range %q", header)
	}
	switch {
	case first == "":
		suffix, err := strconv.Atoi(last)
		if err != nil || suffix < 0 {
			return 0, 0, false, fmt.Errorf("malformed range %q", header)
		}
		return max(size-suffix, 0), size, true, nil
	default:
		start, err = strconv.Atoi(first)
		if err != nil || start < 0 || start > size {
			return 0, 0, false, fmt.Errorf("range %q not satisfiable for %d bytes", header, size)
		}
		end = size
		if last != "" {
			stop, err := strconv.Atoi(last)
			if err != nil || stop < start {
				return 0, 0, false, fmt.Errorf("malformed range %q", header)
			}
			end = min(stop+1, size)
		}
		return start, end, true, nil
	}
}
