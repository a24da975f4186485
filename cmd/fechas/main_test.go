package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runApp(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	app := newApp()
	app.Writer = &out
	app.ErrWriter = &out

	cfgPath := filepath.Join(t.TempDir(), "fechas.yaml")
	require.NoError(t, app.Run(append([]string{"fechas", "--config", cfgPath}, args...)))
	return out.String()
}

func TestClassifyCommand(t *testing.T) {
	out := runApp(t, "classify", "TP final entregado", "Reunión de equipo")
	assert.Equal(t, "examen\tTP final entregado\nnone\tReunión de equipo\n", out)
}

func TestThemeCommandRewritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "UDC Fechas.txt")
	require.NoError(t, os.WriteFile(path, []byte("[Config]\r\nTema = dark\r\n\r\n[X]\r\n"), 0o644))

	runApp(t, "theme", "--set", "neon", path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "[Config]\nTema = neon\n\n[X]\n", string(data))
}

func TestThemeCommandOutput(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.txt")
	out := filepath.Join(dir, "out.txt")
	require.NoError(t, os.WriteFile(in, []byte("[X]\nfoo\n"), 0o644))

	runApp(t, "theme", "-s", "LIGHT", "-o", out, in)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "[Config]\nTema = light\n\n[X]\nfoo\n", string(data))

	orig, err := os.ReadFile(in)
	require.NoError(t, err)
	assert.Equal(t, "[X]\nfoo\n", string(orig))
}

func TestParseCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "f.txt")
	require.NoError(t, os.WriteFile(path, []byte("[Config]\nTema = purple\n[Redes]\nGeneral = https://x.test\nParcial el 10\n"), 0o644))

	out := runApp(t, "parse", path)

	var got struct {
		Theme    string `json:"theme"`
		Document struct {
			Config   map[string]string `json:"config"`
			Sections []struct {
				Name   string            `json:"name"`
				Links  map[string]string `json:"links"`
				Events []struct {
					Text     string `json:"text"`
					Category string `json:"category"`
				} `json:"events"`
			} `json:"sections"`
		} `json:"document"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "monokai", got.Theme)
	assert.Equal(t, "monokai", got.Document.Config["tema"])
	require.Len(t, got.Document.Sections, 1)
	assert.Equal(t, "examen", got.Document.Sections[0].Events[0].Category)
}

func TestICSCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "f.txt")
	require.NoError(t, os.WriteFile(path, []byte("[Redes]\nParcial el 10/11\n"), 0o644))

	out := runApp(t, "ics", "--year", "2025", path)
	assert.Contains(t, out, "BEGIN:VCALENDAR")
	assert.Contains(t, out, "20251110")
}
