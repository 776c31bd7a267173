package controllers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/cppla/threadline/repository"
	"github.com/cppla/threadline/services"
	"github.com/cppla/threadline/utils"
)

// respondError maps service errors onto the envelope. base is the
// handler's 500xx code; client errors use fixed codes per class.
func respondError(ctx *gin.Context, err error, base int) {
	switch {
	case errors.Is(err, services.ErrNotFound):
		utils.Error(ctx, http.StatusNotFound, 40400, err.Error())
	case errors.Is(err, services.ErrValidation):
		utils.Error(ctx, http.StatusBadRequest, 40000, err.Error())
	case errors.Is(err, services.ErrConflict):
		utils.Error(ctx, http.StatusConflict, 40900, err.Error())
	default:
		_ = ctx.Error(err)
		utils.Error(ctx, http.StatusInternalServerError, base, "internal error")
	}
}

func parsePagination(pageStr, sizeStr string) (int, int) {
	page, pageSize := 1, 20
	if n, err := strconv.Atoi(strings.TrimSpace(pageStr)); err == nil && n > 0 {
		page = n
	}
	if n, err := strconv.Atoi(strings.TrimSpace(sizeStr)); err == nil && n > 0 && n <= 100 {
		pageSize = n
	}
	return page, pageSize
}

func pageOf(ctx *gin.Context) repository.Page {
	page, size := parsePagination(ctx.Query("page"), ctx.Query("page_size"))
	return repository.Page{Page: page, PageSize: size}
}

// parseID reads a positive numeric path parameter, writing a 400 when it
// is malformed.
func parseID(ctx *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(ctx.Param(name), 10, 64)
	if err != nil || id == 0 {
		utils.Error(ctx, http.StatusBadRequest, 40001, "invalid "+name)
		return 0, false
	}
	return uint(id), true
}

// pagination mirrors the listing metadata returned by every paged endpoint.
func pagination(page, pageSize int, total int64) gin.H {
	return gin.H{
		"page":        page,
		"page_size":   pageSize,
		"total":       total,
		"total_pages": int((total + int64(pageSize) - 1) / int64(pageSize)),
	}
}
