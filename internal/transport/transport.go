package transport

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Kodanda10/iConnect-sub000/internal/transport/middleware"
)

type Handlers struct {
	Scan         *ScanHandler
	Person       *PersonHandler
	Broadcast    *BroadcastHandler
	Notification *NotificationHandler
	// Queue is nil when no redis queue is configured.
	Queue *QueueHandler
}

func InitRoutes(h Handlers, version string, timeout time.Duration) *gin.Engine {

	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(middleware.CORS())
	router.Use(middleware.Logger())
	router.Use(middleware.Timeout(timeout))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"version": version,
			"time":    time.Now().UTC(),
		})
	})

	api := router.Group("/api/v1")
	{
		scans := api.Group("/scans")
		{
			scans.POST("/daily", h.Scan.RunDaily)
			scans.POST("/range", h.Scan.Backfill)
		}

		persons := api.Group("/persons")
		{
			persons.POST("", h.Person.SavePerson)
			persons.GET("/:id", h.Person.GetPerson)
		}

		broadcasts := api.Group("/broadcasts")
		{
			broadcasts.POST("", h.Broadcast.CreateBroadcast)
			broadcasts.POST("/direct", h.Broadcast.SendDirect)
		}

		api.POST("/notifications/process", h.Notification.ProcessDue)

		if h.Queue != nil {
			q := api.Group("/queue")
			{
				q.GET("/stats", h.Queue.Stats)
				q.GET("/dlq", h.Queue.FailedTasks)
				q.POST("/dlq/:id/requeue", h.Queue.Requeue)
			}
		}
	}

	return router
}
