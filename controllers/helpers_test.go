package controllers

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/cppla/threadline/services"
)

func init() { gin.SetMode(gin.TestMode) }

func TestParsePagination(t *testing.T) {
	t.Parallel()
	for _, tc := range []struct {
		page, size         string
		wantPage, wantSize int
	}{
		{"", "", 1, 20},
		{"3", "50", 3, 50},
		{"-1", "0", 1, 20},
		{"x", "101", 1, 20},
	} {
		page, size := parsePagination(tc.page, tc.size)
		require.Equal(t, tc.wantPage, page, tc.page)
		require.Equal(t, tc.wantSize, size, tc.size)
	}
}

func TestRespondErrorStatus(t *testing.T) {
	t.Parallel()
	for _, tc := range []struct {
		err  error
		want int
	}{
		{fmt.Errorf("post 1: %w", services.ErrNotFound), http.StatusNotFound},
		{fmt.Errorf("%w: bad", services.ErrValidation), http.StatusBadRequest},
		{fmt.Errorf("%w: dup", services.ErrConflict), http.StatusConflict},
		{errors.New("db down"), http.StatusInternalServerError},
	} {
		w := httptest.NewRecorder()
		ctx, _ := gin.CreateTestContext(w)
		respondError(ctx, tc.err, 50000)
		require.Equal(t, tc.want, w.Code, tc.err.Error())
	}
}
