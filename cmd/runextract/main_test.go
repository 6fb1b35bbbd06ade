package main

import (
	"archive/zip"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/legal-docs/internal/common"
)

func TestRun_Docx(t *testing.T) {
	path := filepath.Join(t.TempDir(), "petition.docx")
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	w, err := zw.Create("word/document.xml")
	require.NoError(t, err)
	_, err = w.Write([]byte(`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body><w:p><w:r><w:t>PETITION FOR NAME CHANGE</w:t></w:r></w:p></w:body></w:document>`))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())

	out, err := run(context.Background(), common.LoadConfig(), path, "docx", false, time.Minute, nil)
	require.NoError(t, err)
	assert.Equal(t, "PETITION FOR NAME CHANGE", out.Text)
	assert.Nil(t, out.Classification)
}

func TestRun_ReturnsExtractionErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "old.doc")
	require.NoError(t, os.WriteFile(path, []byte("binary word"), 0o644))

	_, err := run(context.Background(), common.LoadConfig(), path, "doc", false, time.Minute, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrLegacyWordFormat)
	assert.ErrorIs(t, err, common.ErrExtractionFailure)
}
