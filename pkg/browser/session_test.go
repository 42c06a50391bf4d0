package browser

import (
	"errors"
	"testing"
	"time"

	"github.com/entrhq/guitest/pkg/types"
	"github.com/playwright-community/playwright-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClose_NilAndEmptySession(t *testing.T) {
	var nilSession *Session
	assert.NoError(t, nilSession.Close())

	// A session whose Open failed before anything was created.
	partial := &Session{}
	assert.NoError(t, partial.Close())
	assert.NoError(t, partial.Close())
}

func TestToInt(t *testing.T) {
	tests := []struct {
		name    string
		in      interface{}
		want    int
		wantErr bool
	}{
		{name: "int", in: 3, want: 3},
		{name: "int64", in: int64(7), want: 7},
		{name: "whole float", in: float64(2), want: 2},
		{name: "fractional float", in: 2.5, wantErr: true},
		{name: "string", in: "3", wantErr: true},
		{name: "nil", in: nil, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := toInt(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMilliseconds(t *testing.T) {
	assert.Equal(t, 10000.0, *milliseconds(DefaultSelectorTimeout))
	assert.Equal(t, 1500.0, *milliseconds(1500*time.Millisecond))
}

func TestWrapTimeout(t *testing.T) {
	err := wrapTimeout("wait for #x", playwright.ErrTimeout)
	assert.True(t, errors.Is(err, types.ErrTimeout))
	assert.True(t, errors.Is(err, playwright.ErrTimeout))

	err = wrapTimeout("navigate", errors.New("net::ERR_CONNECTION_REFUSED"))
	assert.False(t, errors.Is(err, types.ErrTimeout))
	assert.Contains(t, err.Error(), "navigate: net::ERR_CONNECTION_REFUSED")
}
