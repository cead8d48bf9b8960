package testutils

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDestinationRecordsMultipart(t *testing.T) {
	d := NewDestination(t, http.StatusOK, `{}`)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("name", "Ada"))
	require.NoError(t, mw.Close())

	resp, err := http.Post(d.URL, mw.FormDataContentType(), &body)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	assert.Equal(t, 1, d.Calls())
	assert.Equal(t, "Ada", d.Last(t).Form.Get("name"))
}

func TestDestinationRespond(t *testing.T) {
	d := NewDestination(t, http.StatusOK, `{}`)
	d.Respond(http.StatusUnprocessableEntity, `{"error":"Invalid email"}`)

	resp, err := http.Post(d.URL, "application/json", strings.NewReader(`{"email":"x"}`))
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.JSONEq(t, `{"email":"x"}`, string(d.Last(t).Body))
	assert.Nil(t, d.Last(t).Form)
}

func TestUnreachableURL(t *testing.T) {
	_, err := http.Get(UnreachableURL(t))
	assert.Error(t, err)
}

func TestWriteFile(t *testing.T) {
	dir := t.TempDir()
	path := WriteFile(t, dir, "static/logo.svg", "<svg/>")
	assert.Equal(t, filepath.Join(dir, "static", "logo.svg"), path)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "<svg/>", string(data))
}
