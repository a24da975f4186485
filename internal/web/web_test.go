package web

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fechas/internal/config"
	"fechas/internal/theme"
)

const sample = "[Config]\nTema = dark\n\n[Redes]\nGeneral = https://x.test\nParcial el 10/11\nTP 1 entregado\n"

func newTestServer(t *testing.T) (*Server, *theme.Active) {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Timezone = "UTC"
	cfg.SchedulePath = filepath.Join(t.TempDir(), "UDC Fechas.txt")
	cfg.CacheDir = t.TempDir()
	cfg.Capture.Output = filepath.Join(t.TempDir(), "preview.png")
	themes := theme.NewActive(cfg.Theme)
	return NewServer(cfg, themes, true), themes
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t)
	rec := do(t, s.Handler(), http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}

func TestPostDocumentParsesAndSwitchesTheme(t *testing.T) {
	s, themes := newTestServer(t)

	rec := do(t, s.Handler(), http.MethodPost, "/api/document", sample)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp documentResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "dark", resp.Theme)
	assert.Equal(t, "dark", themes.ActiveTheme())
	require.Len(t, resp.Sections, 1)
	assert.Equal(t, "Redes", resp.Sections[0].Name)
	assert.Equal(t, "tp-entregado", string(resp.Sections[0].Dominant))
	assert.Equal(t, "https://x.test", resp.Sections[0].Links["General"])

	rec = do(t, s.Handler(), http.MethodGet, "/api/document", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"Parcial el 10/11"`)
}

func TestIndexRendersLoadedSchedule(t *testing.T) {
	s, _ := newTestServer(t)
	s.Load(sample)

	rec := do(t, s.Handler(), http.MethodGet, "/", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `<body class="dark" data-ready="true">`)
	assert.Contains(t, rec.Body.String(), `<h4>Redes</h4>`)

	rec = do(t, s.Handler(), http.MethodGet, "/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestThemeEndpoints(t *testing.T) {
	s, themes := newTestServer(t)

	rec := do(t, s.Handler(), http.MethodPut, "/api/theme", `{"theme":"NEON"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "neon", themes.ActiveTheme())

	var resp themeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "neon", resp.Theme)
	assert.Equal(t, theme.Allowed, resp.Allowed)

	rec = do(t, s.Handler(), http.MethodPut, "/api/theme", `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/theme", strings.NewReader("theme=light"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "light", themes.ActiveTheme())
}

func TestDownloadWritesActiveTheme(t *testing.T) {
	s, themes := newTestServer(t)
	s.Load("[X]\nfoo\n")
	themes.SwitchTheme("light")

	rec := do(t, s.Handler(), http.MethodGet, "/api/download", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[Config]\nTema = light\n\n[X]\nfoo\n", rec.Body.String())
	assert.Equal(t, `attachment; filename="UDC Fechas.txt"`, rec.Header().Get("Content-Disposition"))

	text, _ := s.Snapshot()
	assert.Equal(t, "[X]\nfoo\n", text, "download leaves the loaded text alone")

	themes.SwitchTheme("neon")
	rec = do(t, s.Handler(), http.MethodGet, "/api/download", "")
	assert.Equal(t, "[Config]\nTema = neon\n\n[X]\nfoo\n", rec.Body.String())
}

func TestEditFormReplacesSchedule(t *testing.T) {
	s, themes := newTestServer(t)
	s.Load(sample)

	form := url.Values{"text": {"[Config]\r\nTema = neon\r\n[Algebra]\r\nFinal 5/12\r\n"}}
	req := httptest.NewRequest(http.MethodPost, "/edit", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))
	assert.Equal(t, "neon", themes.ActiveTheme())
	_, doc := s.Snapshot()
	assert.Equal(t, []string{"Algebra"}, doc.Names())

	rec = do(t, s.Handler(), http.MethodGet, "/", "")
	assert.Contains(t, rec.Body.String(), "Final 5/12\r\n</textarea>")
}

func TestConcurrentLoadsKeepThemeAndDocumentTogether(t *testing.T) {
	s, themes := newTestServer(t)
	texts := []string{
		"[Config]\nTema = dark\n[A]\nx\n",
		"[Config]\nTema = neon\n[B]\ny\n",
	}

	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 50 {
				s.Load(texts[i%2])
			}
		}()
	}
	wg.Wait()

	_, doc := s.Snapshot()
	require.NotNil(t, doc.Config)
	assert.Equal(t, doc.Config.Tema, themes.ActiveTheme())
}

func TestCalendarExport(t *testing.T) {
	s, _ := newTestServer(t)
	s.Load(sample)

	rec := do(t, s.Handler(), http.MethodGet, "/calendar.ics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/calendar; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "SUMMARY:Redes: Parcial el 10/11")
	assert.NotContains(t, rec.Body.String(), "TP 1 entregado")
}

func TestPreview(t *testing.T) {
	s, _ := newTestServer(t)

	rec := do(t, s.Handler(), http.MethodGet, "/preview.png", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	require.NoError(t, os.WriteFile(s.cfg.Capture.Output, []byte("\x89PNG"), 0o644))
	rec = do(t, s.Handler(), http.MethodGet, "/preview.png", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReloadFromDisk(t *testing.T) {
	s, _ := newTestServer(t)
	require.NoError(t, os.WriteFile(s.cfg.SchedulePath, []byte("[Algebra]\nFinal 5/12\n"), 0o644))

	require.NoError(t, s.Reload(t.Context()))
	text, doc := s.Snapshot()
	assert.Equal(t, "[Algebra]\nFinal 5/12\n", text)
	assert.Equal(t, []string{"Algebra"}, doc.Names())
}

func TestBasicAuth(t *testing.T) {
	s, _ := newTestServer(t)
	s.cfg.BasicAuth = &config.BasicAuthConfig{Username: "ana", Password: "secreto"}
	h := s.Handler()

	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/health", "").Code)
	assert.Equal(t, http.StatusUnauthorized, do(t, h, http.MethodGet, "/api/document", "").Code)

	req := httptest.NewRequest(http.MethodGet, "/api/document", nil)
	req.SetBasicAuth("ana", "secreto")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
