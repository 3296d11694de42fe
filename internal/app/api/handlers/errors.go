package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/alanwang5210/telegram-bot/pkg/logctx"
	"github.com/alanwang5210/telegram-bot/pkg/response"
)

// fail writes err as a response envelope. Internal errors are logged and
// returned without detail.
func fail(c *gin.Context, log *zap.SugaredLogger, err error) {
	status, code := response.FromError(err)
	if status >= http.StatusInternalServerError {
		logctx.FromGin(c, log).Errorw("request failed", "path", c.FullPath(), "error", err)
		c.JSON(status, response.ErrorT[any](code, nil))
		return
	}
	c.JSON(status, response.ErrorT[any](code, err.Error()))
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, response.ErrorT[any](response.APIResponseCodeBadRequest, msg))
}

// externalID reads the :external_id path parameter.
func externalID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("external_id"), 10, 64)
	if err != nil {
		badRequest(c, "invalid external_id")
		return 0, false
	}
	return id, true
}

func queryInt(c *gin.Context, key string, def int) int {
	if v, err := strconv.Atoi(c.Query(key)); err == nil {
		return v
	}
	return def
}
