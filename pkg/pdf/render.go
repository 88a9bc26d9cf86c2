// Package pdf собирает HTML предложений и счетов и превращает его в PDF
// через внешний сервис рендеринга (headless Chromium).
package pdf

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// PageOptions задаёт параметры страницы, размеры в дюймах
type PageOptions struct {
	Width           float64
	Height          float64
	MarginTop       float64
	MarginBottom    float64
	MarginLeft      float64
	MarginRight     float64
	Landscape       bool
	PrintBackground bool
}

// A4 возвращает формат по умолчанию для документов
func A4() PageOptions {
	return PageOptions{
		Width:           8.27,
		Height:          11.69,
		MarginTop:       0.4,
		MarginBottom:    0.4,
		MarginLeft:      0.4,
		MarginRight:     0.4,
		PrintBackground: true,
	}
}

// Renderer превращает HTML в байты PDF
type Renderer interface {
	RenderHTMLToPDF(ctx context.Context, html string, opts PageOptions) ([]byte, error)
}

// GotenbergRenderer отправляет HTML в сервис Gotenberg (маршрут chromium/convert/html)
type GotenbergRenderer struct {
	BaseURL    string
	HTTPClient *http.Client
}

func NewGotenbergRenderer(baseURL string) *GotenbergRenderer {
	return &GotenbergRenderer{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: 60 * time.Second},
	}
}

func (r *GotenbergRenderer) RenderHTMLToPDF(ctx context.Context, html string, opts PageOptions) ([]byte, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	fw, err := mw.CreateFormFile("files", "index.html")
	if err != nil {
		return nil, err
	}
	if _, err := io.WriteString(fw, html); err != nil {
		return nil, err
	}
	for name, value := range pageFields(opts) {
		if err := mw.WriteField(name, value); err != nil {
			return nil, err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.BaseURL+"/forms/chromium/convert/html", &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	client := r.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("render pdf: status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	return io.ReadAll(resp.Body)
}

func pageFields(o PageOptions) map[string]string {
	f := func(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
	fields := map[string]string{
		"marginTop":       f(o.MarginTop),
		"marginBottom":    f(o.MarginBottom),
		"marginLeft":      f(o.MarginLeft),
		"marginRight":     f(o.MarginRight),
		"landscape":       strconv.FormatBool(o.Landscape),
		"printBackground": strconv.FormatBool(o.PrintBackground),
	}
	if o.Width > 0 {
		fields["paperWidth"] = f(o.Width)
	}
	if o.Height > 0 {
		fields["paperHeight"] = f(o.Height)
	}
	return fields
}
