// Package vendortest предоставляет фейковый API вендора для тестов.
package vendortest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
)

// Пути фейкового API. Совпадают с vendor.DefaultEndpoints().
const (
	PathAuth       = "/v1/oauth/token"
	PathCreateTask = "/v1/task/"
	PathUpload     = "/v1/file/upload"
	PathExecute    = "/v1/execute/start"
	PathTaskInfo   = "/v1/task/taskInfo"
	PathDownload   = "/files/result"
)

// Значения по умолчанию.
const (
	Token  = "test-token"
	TaskID = "task-1"
)

// Server — фейковый API вендора поверх httptest.Server.
//
// Поля настраиваются до первого запроса. По умолчанию все шаги
// успешны, а первый же запрос статуса возвращает success.
type Server struct {
	*httptest.Server

	// Codes — код ответа по пути (PathAuth, PathCreateTask, ...). Отсутствие — 200.
	Codes map[string]int

	// Statuses — последовательность taskStatus. Последний повторяется.
	Statuses []string

	// FailureReason — причина для статуса failed.
	FailureReason string

	// Result — тело результата.
	Result []byte

	// ResultContentType — Content-Type результата.
	ResultContentType string

	// OmitDownloadURL — вернуть success без ссылки.
	OmitDownloadURL bool

	mu       sync.Mutex
	calls    []string
	polls    int
	uploaded []byte
	fileName string
	auth     map[string]string
}

// NewServer запускает фейковый API.
func NewServer() *Server {
	s := &Server{
		Codes:             map[string]int{},
		Statuses:          []string{"success"},
		Result:            []byte("%PDF-1.4 fake"),
		ResultContentType: "application/pdf",
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	return s
}

// Calls возвращает пути вызовов в порядке поступления.
func (s *Server) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

// CallCount возвращает общее число вызовов.
func (s *Server) CallCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

// Polls возвращает число запросов статуса.
func (s *Server) Polls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.polls
}

// Uploaded возвращает содержимое и имя загруженного файла.
func (s *Server) Uploaded() ([]byte, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.uploaded, s.fileName
}

// AuthBody возвращает тело запроса авторизации.
func (s *Server) AuthBody() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.auth
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path
	key := path
	if strings.HasPrefix(path, PathCreateTask) && path != PathTaskInfo {
		key = PathCreateTask
	}

	s.mu.Lock()
	s.calls = append(s.calls, key)
	code, ok := s.Codes[key]
	s.mu.Unlock()
	if !ok {
		code = 200
	}

	if key != PathAuth && key != PathDownload && r.Header.Get("Authorization") != "Bearer "+Token {
		writeEnvelope(w, 401, "unauthorized", nil)
		return
	}

	if key == PathDownload {
		if code != 200 {
			http.Error(w, "gone", code)
			return
		}
		w.Header().Set("Content-Type", s.ResultContentType)
		w.Write(s.Result)
		return
	}

	if code != 200 {
		writeEnvelope(w, code, fmt.Sprintf("%s rejected", key), nil)
		return
	}

	switch key {
	case PathAuth:
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		s.mu.Lock()
		s.auth = body
		s.mu.Unlock()
		writeEnvelope(w, 200, "ok", map[string]string{"accessToken": Token})

	case PathCreateTask:
		writeEnvelope(w, 200, "ok", map[string]string{"taskId": TaskID})

	case PathUpload:
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			writeEnvelope(w, 400, err.Error(), nil)
			return
		}
		if r.FormValue("taskId") != TaskID {
			writeEnvelope(w, 404, "task not found", nil)
			return
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			writeEnvelope(w, 400, "file is required", nil)
			return
		}
		data, _ := io.ReadAll(file)
		file.Close()
		s.mu.Lock()
		s.uploaded = data
		s.fileName = header.Filename
		s.mu.Unlock()
		writeEnvelope(w, 200, "ok", nil)

	case PathExecute:
		writeEnvelope(w, 200, "ok", nil)

	case PathTaskInfo:
		s.mu.Lock()
		idx := s.polls
		if idx >= len(s.Statuses) {
			idx = len(s.Statuses) - 1
		}
		status := s.Statuses[idx]
		s.polls++
		s.mu.Unlock()

		data := map[string]string{"taskId": TaskID, "taskStatus": status}
		switch strings.ToLower(status) {
		case "success":
			if !s.OmitDownloadURL {
				data["downloadUrl"] = s.URL + PathDownload
			}
		case "failed":
			data["failureReason"] = s.FailureReason
		}
		writeEnvelope(w, 200, "ok", data)

	default:
		http.NotFound(w, r)
	}
}

func writeEnvelope(w http.ResponseWriter, code int, message string, data any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"code":    code,
		"message": message,
		"data":    data,
	})
}
