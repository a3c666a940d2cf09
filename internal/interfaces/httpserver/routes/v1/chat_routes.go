package v1

import (
	"github.com/gin-gonic/gin"

	"github.com/techmannih/helper-sub007/internal/interfaces/httpserver/handlers"
)

func registerChatRoutes(group *gin.RouterGroup, handler *handlers.ChatHandler) {
	chat := group.Group("/chat")
	chat.POST("/conversations", handler.CreateConversation)
	chat.GET("/conversations/:slug", handler.GetConversation)
	chat.POST("/conversations/:slug/messages", handler.SendMessage)
	chat.POST("/conversations/:slug/messages/:message_id/flag", handler.FlagMessage)
}
