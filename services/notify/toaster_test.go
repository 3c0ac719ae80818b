package notify

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToaster(t *testing.T) {
	buf := new(bytes.Buffer)
	toaster := NewToaster(buf)

	toaster.Success("Cours créé avec succès")
	toaster.Error("Erreur HTTP: 500")
	toaster.Info("3 cours")

	assert.Equal(t, "✔ Cours créé avec succès\n✘ Erreur HTTP: 500\nℹ 3 cours\n", buf.String(), "no colors outside a terminal")

	history := toaster.History()
	require.Len(t, history, 3)
	assert.Equal(t, LevelError, history[1].Level)

	last, ok := toaster.Last(LevelSuccess)
	require.True(t, ok)
	assert.Equal(t, "Cours créé avec succès", last.Message)

	toaster.Reset()
	_, ok = toaster.Last(LevelSuccess)
	assert.False(t, ok)
}

func TestRecorder(t *testing.T) {
	rec := NewRecorder()
	rec.Error("Session expirée, veuillez vous reconnecter")
	last, ok := rec.Last(LevelError)
	require.True(t, ok)
	assert.Equal(t, "Session expirée, veuillez vous reconnecter", last.Message)
}
