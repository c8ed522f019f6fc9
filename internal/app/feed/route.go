package feed

import "github.com/gin-gonic/gin"

func RegisterRoutes(rg gin.IRoutes, handler Handler) {
	rg.GET("/", handler.Page)
	rg.GET("/messages", handler.Messages)
	rg.POST("/delete", handler.Delete)
	rg.POST("/react", handler.React)
}
