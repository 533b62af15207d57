package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/shaiso/docconv/internal/domain"
)

// --- Response types (дублируются из api/dto.go, CLI не импортирует internal/api) ---

// ConversionResponse — запись истории из API.
type ConversionResponse struct {
	ID             string `json:"id"`
	FileName       string `json:"file_name"`
	ResultFileName string `json:"result_file_name,omitempty"`
	TaskID         string `json:"task_id,omitempty"`
	Outcome        string `json:"outcome"`
	Error          string `json:"error,omitempty"`
	PollAttempts   int    `json:"poll_attempts"`
	InputSize      int64  `json:"input_size"`
	StartedAt      string `json:"started_at"`
	FinishedAt     string `json:"finished_at,omitempty"`
	DurationMs     int64  `json:"duration_ms"`
}

// HealthResponse — ответ /healthz.
type HealthResponse struct {
	Status string `json:"status"`
	Uptime string `json:"uptime"`
}

// ConvertResult — итог конвертации на стороне клиента.
type ConvertResult struct {
	Input       string `json:"input"`
	Output      string `json:"output"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
}

// ConvertOptions — параметры Convert.
type ConvertOptions struct {
	// OutPath — файл или директория для результата.
	// Пустое значение: директория исходного файла.
	OutPath string

	// Progress оборачивает тело запроса, например для индикатора загрузки.
	Progress func(r io.Reader, size int64) io.Reader

	// OnUploaded вызывается, когда файл полностью отправлен.
	OnUploaded func()
}

// ErrUnsupportedFile — расширение файла не поддерживается сервисом.
var ErrUnsupportedFile = errors.New("unsupported file type")

// --- API response wrappers ---

type dataResponse struct {
	Data json.RawMessage `json:"data"`
}

type listResponse struct {
	Data  json.RawMessage `json:"data"`
	Total int             `json:"total"`
}

type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// --- Client ---

// DefaultTimeout покрывает загрузку, опрос вендора и скачивание.
const DefaultTimeout = 3 * time.Minute

// Client — HTTP-клиент для docconv API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient создаёт клиент для API.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
	}
}

// --- Conversion ---

// Convert отправляет файл на конвертацию и сохраняет результат.
func (c *Client) Convert(ctx context.Context, path string, opts ConvertOptions) (*ConvertResult, error) {
	if !domain.IsSupportedExtension(filepath.Ext(path)) {
		return nil, fmt.Errorf("%w: %s (supported: %v)", ErrUnsupportedFile, filepath.Base(path), domain.SupportedExtensions)
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	var src io.Reader = file
	if opts.Progress != nil {
		src = opts.Progress(file, info.Size())
	}

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		part, err := mw.CreateFormFile("file", filepath.Base(path))
		if err == nil {
			_, err = io.Copy(part, src)
		}
		if err == nil {
			err = mw.Close()
		}
		if err == nil && opts.OnUploaded != nil {
			opts.OnUploaded()
		}
		pw.CloseWithError(err)
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/convert", pr)
	if err != nil {
		pr.Close()
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return nil, err
	}

	outPath := resolveOutPath(path, opts.OutPath, resultFileName(resp, path))
	size, err := writeFile(outPath, resp.Body)
	if err != nil {
		return nil, err
	}

	return &ConvertResult{
		Input:       path,
		Output:      outPath,
		ContentType: resp.Header.Get("Content-Type"),
		Size:        size,
	}, nil
}

// resultFileName берёт имя из Content-Disposition, иначе выводит его из исходного.
func resultFileName(resp *http.Response, input string) string {
	if cd := resp.Header.Get("Content-Disposition"); cd != "" {
		if _, params, err := mime.ParseMediaType(cd); err == nil {
			if name := filepath.Base(params["filename"]); name != "." && name != string(filepath.Separator) && name != "" {
				return name
			}
		}
	}
	return domain.ResultFileName(filepath.Base(input), domain.TargetExtension)
}

func resolveOutPath(input, out, name string) string {
	if out == "" {
		return filepath.Join(filepath.Dir(input), name)
	}
	if info, err := os.Stat(out); err == nil && info.IsDir() {
		return filepath.Join(out, name)
	}
	return out
}

// writeFile пишет результат; при ошибке частичный файл удаляется.
func writeFile(path string, r io.Reader) (int64, error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("failed to create output: %w", err)
	}

	n, err := io.Copy(f, r)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(path)
		return 0, fmt.Errorf("failed to write output: %w", err)
	}
	return n, nil
}

// --- History ---

// ListConversions возвращает последние конвертации.
func (c *Client) ListConversions(limit int) ([]ConversionResponse, error) {
	params := url.Values{}
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}

	var conversions []ConversionResponse
	err := c.list("/api/v1/conversions", params, &conversions)
	return conversions, err
}

// GetConversion возвращает конвертацию по ID.
func (c *Client) GetConversion(id string) (*ConversionResponse, error) {
	var conv ConversionResponse
	err := c.get("/api/v1/conversions/"+url.PathEscape(id), &conv)
	return &conv, err
}

// Health проверяет доступность сервиса.
func (c *Client) Health() (*HealthResponse, error) {
	resp, err := c.do(http.MethodGet, "/healthz")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return nil, err
	}

	var health HealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &health, nil
}

// --- HTTP helpers ---

func (c *Client) get(path string, result any) error {
	resp, err := c.do(http.MethodGet, path)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	var dr dataResponse
	if err := json.NewDecoder(resp.Body).Decode(&dr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return json.Unmarshal(dr.Data, result)
}

func (c *Client) list(path string, params url.Values, result any) error {
	if len(params) > 0 {
		path = path + "?" + params.Encode()
	}

	resp, err := c.do(http.MethodGet, path)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	var lr listResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return json.Unmarshal(lr.Data, result)
}

func (c *Client) do(method, path string) (*http.Response, error) {
	req, err := http.NewRequest(method, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	return c.httpClient.Do(req)
}

func (c *Client) checkError(resp *http.Response) error {
	if resp.StatusCode < 400 {
		return nil
	}

	var er errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&er); err != nil || er.Error.Code == "" {
		return fmt.Errorf("API error: HTTP %d", resp.StatusCode)
	}

	return fmt.Errorf("%s: %s", er.Error.Code, er.Error.Message)
}
