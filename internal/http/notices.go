package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/bookkeeper/internal/session"
)

// NoticeSource holds recent user-facing notices.
type NoticeSource interface {
	Recent() []session.Notice
	Drain() []session.Notice
}

type NoticesController struct {
	notices NoticeSource
}

func NewNoticesController(notices NoticeSource) *NoticesController {
	return &NoticesController{notices: notices}
}

// List returns recent notices. With ?drain=true they are consumed.
// GET /api/notices
func (nc *NoticesController) List(c *gin.Context) {
	var notices []session.Notice
	if c.Query("drain") == "true" {
		notices = nc.notices.Drain()
	} else {
		notices = nc.notices.Recent()
	}
	if notices == nil {
		notices = []session.Notice{}
	}
	c.JSON(http.StatusOK, gin.H{"notices": notices})
}
