package scanclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/decode", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1 << 20))
		_, header, err := r.FormFile("image")
		require.NoError(t, err)
		assert.Equal(t, "card.png", header.Filename)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"found":true,"student_id":"STU001","format":"CODE128"}`))
	}))
	defer srv.Close()

	c := New(srv.URL, 2*time.Second)
	result, err := c.Decode(context.Background(), strings.NewReader("not-really-a-png"), "card.png")
	require.NoError(t, err)
	assert.True(t, result.Found)
	assert.Equal(t, "STU001", result.StudentID)
}

func TestDecodeNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"found":false}`))
	}))
	defer srv.Close()

	result, err := New(srv.URL, 2*time.Second).Decode(context.Background(), strings.NewReader("x"), "x.png")
	require.NoError(t, err)
	assert.False(t, result.Found)
	assert.Empty(t, result.StudentID)
}

func TestDecodeServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := New(srv.URL, 2*time.Second).Decode(context.Background(), strings.NewReader("x"), "x.png")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
}

func TestHealth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	require.NoError(t, New(srv.URL, time.Second).Health(context.Background()))
}
