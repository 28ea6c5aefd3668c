package api

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"

	"github.com/d60-Lab/azit-engine/internal/api/handler"
	"github.com/d60-Lab/azit-engine/internal/model"
	"github.com/d60-Lab/azit-engine/pkg/logger"
)

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("http",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("cost", time.Since(start)),
		)
	}
}

// NewRouter 装配渲染层使用的路由。浏览器端带凭证跨域访问，
// CORS 必须允许 credentials。
func NewRouter(h *handler.Handler, mode string) *gin.Engine {
	gin.SetMode(mode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogger())
	r.Use(otelgin.Middleware("azit-engine"))
	r.Use(gzip.Gzip(gzip.DefaultCompression))

	corsCfg := cors.DefaultConfig()
	corsCfg.AllowAllOrigins = false
	corsCfg.AllowOriginFunc = func(string) bool { return true }
	corsCfg.AllowCredentials = true
	corsCfg.AllowHeaders = append(corsCfg.AllowHeaders, "Authorization")
	r.Use(cors.New(corsCfg))

	r.GET("/my-info", h.MyInfo)

	for _, kind := range []model.ContentKind{model.KindBoard, model.KindFeed, model.KindNews} {
		g := r.Group("/api/" + string(kind))
		g.GET("", h.ListContent(kind))
		g.POST("", h.CreateContent(kind))
		g.GET("/:id", h.FetchContent(kind))
		g.PUT("/:id", h.UpdateContent(kind))
		g.DELETE("/:id", h.DeleteContent(kind))
		g.DELETE("/image/:imageId", h.DeleteAttachment(kind))
		g.POST("/:id/comment", h.CreateComment(kind))
		g.PUT("/comment/:commentId", h.UpdateComment(kind))
		g.DELETE("/comment/:commentId", h.DeleteComment(kind))
		g.POST("/:id/heart", h.ToggleHeart(kind))
	}

	feed := r.Group("/api/feed")
	feed.POST("/follow/:email", h.ToggleFollow)
	feed.POST("/:id/retweet", h.Retweet)
	feed.GET("/followers", h.ListFollowers)
	feed.GET("/followings", h.ListFollowings)

	noti := r.Group("/api/notifications")
	noti.GET("", h.OpenNotifications)
	noti.GET("/unread-count", h.UnreadCount)
	noti.POST("/close", h.CloseNotifications)
	noti.POST("/:id/read", h.ReadNotification)

	kw := r.Group("/api/keywords")
	kw.GET("", h.ListKeywords)
	kw.POST("", h.AddKeyword)
	kw.DELETE("", h.RemoveKeyword)

	return r
}
