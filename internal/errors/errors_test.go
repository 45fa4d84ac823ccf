package errors

import (
	"errors"
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPathError(t *testing.T) {
	cause := fs.ErrNotExist
	err := &PathError{Path: "site", Err: cause}

	assert.Contains(t, err.Error(), `"site"`)
	assert.True(t, errors.Is(err, fs.ErrNotExist))
}

func TestRenderError(t *testing.T) {
	cause := errors.New("unexpected EOF")
	err := NewRenderError("pages/about.html", cause)
	require.Error(t, err)

	var re *RenderError
	require.True(t, errors.As(err, &re))
	assert.Equal(t, "pages/about.html", re.Path)
	assert.Contains(t, err.Error(), "pages/about.html")
	assert.True(t, errors.Is(err, cause))
}

func TestNewRenderErrorNil(t *testing.T) {
	assert.NoError(t, NewRenderError("index.html", nil))
}

func TestBindError(t *testing.T) {
	err := &BindError{Addr: "localhost:8000", Err: errors.New("address already in use")}
	assert.Contains(t, err.Error(), "localhost:8000")
}

func TestIsFatal(t *testing.T) {
	assert.False(t, IsFatal(nil))
	assert.False(t, IsFatal(&RenderError{Path: "a", Err: errors.New("boom")}))
	assert.True(t, IsFatal(&PathError{Path: "a", Err: errors.New("boom")}))
	assert.True(t, IsFatal(&BindError{Addr: "x", Err: errors.New("boom")}))
	assert.True(t, IsFatal(errors.New("plain")))
}
