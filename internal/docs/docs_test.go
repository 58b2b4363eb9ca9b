package docs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractText(t *testing.T) {
	text, err := Extract("brief.md", []byte("# CRM\r\n\r\n\r\nTrack leads.   \n\n\nSend reminders.\n"))
	require.NoError(t, err)
	assert.Equal(t, "# CRM\n\nTrack leads.\n\nSend reminders.", text)
}

func TestExtractRejectsBinary(t *testing.T) {
	_, err := Extract("blob.bin", []byte{0xff, 0xfe, 0x00, 0x81})
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestExtractBrokenPDF(t *testing.T) {
	_, err := Extract("brief.pdf", []byte("%PDF-1.4\nnot really a pdf"))
	assert.Error(t, err)
}

func TestReadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "requirements.txt")
	require.NoError(t, os.WriteFile(path, []byte("A booking system for a dentist.\n"), 0o644))

	text, err := ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "A booking system for a dentist.", text)

	_, err = ReadFile(filepath.Join(t.TempDir(), "missing.txt"))
	assert.Error(t, err)
}
