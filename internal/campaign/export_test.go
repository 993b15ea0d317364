package campaign

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unclebandit/wsp-bulk-sender/internal/model"
)

func TestLogRoundTrip(t *testing.T) {
	at := time.Date(2025, 1, 10, 14, 3, 9, 0, time.UTC)
	entries := []model.LogEntry{
		model.NewLogEntry(at, model.LevelError, `584121234567 - error: (#100) Invalid parameter "to", check it`),
		model.NewLogEntry(at.Add(2*time.Second), model.LevelSuccess, "584129876543 - sent (ID: wamid.HBgM)"),
		model.NewLogEntry(at.Add(4*time.Second), model.LevelWarning, "multi\nline"),
	}

	var buf bytes.Buffer
	require.NoError(t, WriteLog(&buf, entries))
	assert.True(t, strings.HasPrefix(buf.String(), "Hora,Icono,Mensaje\n"))

	got, err := ReadLog(&buf)
	require.NoError(t, err)
	assert.Equal(t, ToRecords(entries), got)
	assert.Equal(t, "14:03:09", got[0].Time)
	assert.Equal(t, "❌", got[0].Icon)
}

func TestExportRunnerLog(t *testing.T) {
	r := NewRunner(testSettings())
	require.NoError(t, r.Run(context.Background(), twoRecipients(), &recordingSender{}, 0))

	var buf bytes.Buffer
	require.NoError(t, WriteLog(&buf, r.Snapshot().Log))

	got, err := ReadLog(strings.NewReader(buf.String()))
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "1 - sent (ID: wamid)", got[0].Message)
	assert.Equal(t, "Campaign completed", got[2].Message)
}

func TestReadLogRejectsForeignFiles(t *testing.T) {
	_, err := ReadLog(strings.NewReader("numero,variable1\n1,a\n"))
	assert.ErrorIs(t, err, ErrBadLogHeader)

	_, err = ReadLog(strings.NewReader(""))
	assert.ErrorIs(t, err, ErrBadLogHeader)
}

func TestEmptyLogExport(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteLog(&buf, nil))
	assert.Equal(t, "Hora,Icono,Mensaje\n", buf.String())

	got, err := ReadLog(&buf)
	require.NoError(t, err)
	assert.Empty(t, got)
}
